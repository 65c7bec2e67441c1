package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/handler/http/auth"
	"slack-bridge/internal/handler/http/slackapp"
	"slack-bridge/internal/infra/slack"
)

// Decision is a reviewer's choice made with an interactive button.
type Decision struct {
	Trigger  entity.Trigger `json:"trigger"`
	Action   string         `json:"action"`
	ID       int64          `json:"id"`
	Reviewer string         `json:"reviewer"`
}

// Decider applies a decision in the store.
type Decider interface {
	Decide(ctx context.Context, d Decision) error
}

// RegisterInteractions routes the fraud and vendor buttons to decider and
// replaces the original message with the outcome.
func RegisterInteractions(h *slackapp.Handler, decider Decider) {
	h.HandleInteraction(string(entity.TriggerFraudFlagged), decide(decider, entity.TriggerFraudFlagged, map[string]string{
		ActionApprovePayment: "Payment #%d accepted as valid by %s.",
		ActionRejectPayment:  "Payment #%d refunded by %s.",
	}))
	h.HandleInteraction(string(entity.TriggerVendorRegistered), decide(decider, entity.TriggerVendorRegistered, map[string]string{
		ActionApproveVendor: "Vendor #%d approved by %s.",
	}))
}

func decide(decider Decider, trigger entity.Trigger, outcomes map[string]string) slackapp.InteractionHandler {
	return func(ctx context.Context, in slackapp.Interaction) (*slack.Message, error) {
		if len(in.Actions) == 0 {
			return nil, nil
		}
		action := in.Actions[0]
		format, ok := outcomes[action.Name]
		if !ok {
			return &slack.Message{ResponseType: "ephemeral", Text: "Unknown action."}, nil
		}
		id, err := strconv.ParseInt(action.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("action %s: invalid id %q", action.Name, action.Value)
		}

		reviewer := in.User.Name
		if reviewer == "" {
			reviewer = in.User.ID
		}
		if err := decider.Decide(ctx, Decision{Trigger: trigger, Action: action.Name, ID: id, Reviewer: reviewer}); err != nil {
			return nil, err
		}
		return &slack.Message{
			ReplaceOriginal: slack.Bool(true),
			Text:            fmt.Sprintf(format, id, reviewer),
		}, nil
	}
}

// CallbackDecider posts decisions to the store's callback URL, signed with
// the shared ingest secret.
type CallbackDecider struct {
	URL     string
	Secret  []byte
	Client  *http.Client
	Logger  *slog.Logger
	Timeout time.Duration
}

// Decide posts d to the callback URL and fails on any non-2xx answer.
func (c *CallbackDecider) Decide(ctx context.Context, d Decision) error {
	if c.URL == "" {
		c.Logger.Info("decision recorded without store callback",
			slog.String("trigger", string(d.Trigger)),
			slog.String("action", d.Action),
			slog.Int64("id", d.ID))
		return nil
	}

	token, err := auth.IssueToken(c.Secret, "slack-bridge", d.Reviewer, time.Minute)
	if err != nil {
		return fmt.Errorf("sign decision: %w", err)
	}
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create decision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post decision: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("store rejected decision: status %d", resp.StatusCode)
	}
	return nil
}
