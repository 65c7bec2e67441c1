package notify

import (
	"context"
	"fmt"
	"hash/fnv"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/infra/slack"
	"slack-bridge/internal/usecase/render"
)

// generalChannel is used on the Web API path when neither the rule nor the
// namespace names a channel.
const generalChannel = "#general"

// Defaults are per-namespace values used when a rule leaves a field empty.
type Defaults struct {
	WebhookURL     string `yaml:"webhook_url"`
	Channel        string `yaml:"channel"`
	Username       string `yaml:"username"`
	Icon           string `yaml:"icon"`
	GeneralChannel string `yaml:"general_channel"`
}

// Draft is the message of one rule before a transport is chosen.
// Overrides receive and return drafts.
type Draft struct {
	Trigger   entity.Trigger
	RuleID    int64
	Namespace string
	Event     entity.Event

	// Target is a webhook URL or a Web API method name.
	Target  string
	Message slack.Message
}

// Override rewrites a draft. Overrides of one trigger are folded in
// registration order, so each must extend what it receives rather than
// replace it.
type Override func(d Draft) Draft

// Kind is the transport path of a request.
type Kind string

const (
	KindWebhook Kind = "webhook"
	KindWebAPI  Kind = "web_api"
)

// Request is the resolved outbound call of one rule.
type Request struct {
	Kind    Kind
	URL     string
	Method  string
	Message slack.Message
}

// Destination is a stable, secret-free key for the request's endpoint.
func (r Request) Destination() string {
	if r.Kind == KindWebAPI {
		return string(KindWebAPI) + ":" + r.Method
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(r.URL))
	return fmt.Sprintf("%s:%08x", KindWebhook, h.Sum32())
}

// NewDraft builds the draft of rule from its rendered fields.
func NewDraft(rule entity.Rule, evt entity.Event, fields render.Fields, defaults Defaults) Draft {
	target := rule.Fields.WebhookURL
	if target == "" {
		target = defaults.WebhookURL
	}

	msg := slack.Message{
		Channel:  slack.FormatChannel(rule.Fields.Channel),
		Username: rule.Fields.Username,
		Attachments: []slack.Attachment{{
			Pretext: fields.Pretext,
			Title:   fields.Title,
			Text:    fields.Text,
			Color:   rule.Fields.Color,
		}},
	}
	msg.SetIcon(rule.Fields.Icon)

	return Draft{
		Trigger:   evt.Trigger,
		RuleID:    rule.ID,
		Namespace: rule.Namespace,
		Event:     evt,
		Target:    target,
		Message:   msg,
	}
}

// Resolve picks the transport for a draft whose overrides were applied.
// Targets containing the incoming-webhook host use the webhook path; any
// other non-empty target is a Web API method name.
func Resolve(d Draft, defaults Defaults) (Request, error) {
	if d.Target == "" {
		return Request{}, slack.ErrNoDestination
	}

	if slack.IsWebhookURL(d.Target) {
		return Request{Kind: KindWebhook, URL: d.Target, Message: d.Message}, nil
	}

	msg := d.Message.Clone()
	if msg.Channel == "" {
		msg.Channel = defaultChannel(defaults)
	}
	if msg.Username == "" {
		msg.Username = defaults.Username
	}
	if msg.Icon() == "" {
		msg.SetIcon(defaults.Icon)
	}
	msg.AsUser = slack.Bool(false)

	if len(msg.Attachments) == 0 {
		msg.Attachments = []slack.Attachment{{}}
	}
	first := &msg.Attachments[0]
	first.CallbackID = string(d.Trigger)
	if first.Fallback == "" {
		first.Fallback = first.Pretext
		if first.Fallback == "" {
			first.Fallback = first.Title
		}
	}

	return Request{Kind: KindWebAPI, Method: d.Target, Message: msg}, nil
}

func defaultChannel(defaults Defaults) string {
	for _, ch := range []string{defaults.Channel, defaults.GeneralChannel} {
		if ch != "" {
			return slack.FormatChannel(ch)
		}
	}
	return generalChannel
}

// Sender performs a resolved request.
type Sender interface {
	Send(ctx context.Context, req Request) error
}

// Transport sends requests through the Slack client.
type Transport struct {
	client *slack.Client
}

// NewTransport returns a Transport over client.
func NewTransport(client *slack.Client) *Transport {
	return &Transport{client: client}
}

// Send performs req. Web API calls without a configured token fail with
// slack.ErrNoToken before any network traffic.
func (t *Transport) Send(ctx context.Context, req Request) error {
	switch req.Kind {
	case KindWebhook:
		return t.client.PostWebhook(ctx, req.URL, req.Message)
	case KindWebAPI:
		if !t.client.HasToken() {
			return slack.ErrNoToken
		}
		_, err := t.client.Call(ctx, req.Method, req.Message)
		return err
	default:
		return fmt.Errorf("unknown transport kind %q", req.Kind)
	}
}
