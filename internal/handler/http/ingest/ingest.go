// Package ingest accepts store events over HTTP and emits them on the bus.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/handler/http/requestid"
	"slack-bridge/internal/handler/http/respond"
	"slack-bridge/internal/integration"
	"slack-bridge/internal/observability/logging"
)

// maxBodyBytes bounds one event body.
const maxBodyBytes = 1 << 20

// Emitter publishes decoded events.
type Emitter interface {
	Emit(ctx context.Context, evt entity.Event)
}

// Request is the JSON body of POST /events.
type Request struct {
	Trigger    string     `json:"trigger"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
	Payload    PayloadDTO `json:"payload"`
}

// PayloadDTO is the wire form of entity.Payload. Cart maps a product id to
// the price ids present in the event. The user_* fields describe the
// account behind user_id and are ignored for guests.
type PayloadDTO struct {
	UserID       int64              `json:"user_id"`
	UserName     string             `json:"user_name"`
	UserLogin    string             `json:"user_login"`
	UserEmail    string             `json:"user_email"`
	GuestName    string             `json:"guest_name"`
	GuestEmail   string             `json:"guest_email"`
	Cart         map[string][]int64 `json:"cart"`
	DiscountCode string             `json:"discount_code"`
	Detail       json.RawMessage    `json:"detail"`
}

// Handler serves POST /events.
type Handler struct {
	emitter  Emitter
	decoders map[entity.Trigger]integration.Decoder
	logger   *slog.Logger
}

// NewHandler returns an ingest handler. Triggers without a decoder are
// accepted with an empty detail.
func NewHandler(emitter Emitter, decoders map[entity.Trigger]integration.Decoder, logger *slog.Logger) *Handler {
	return &Handler{emitter: emitter, decoders: decoders, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		respond.Error(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	reqID := requestid.FromContext(r.Context())
	logger := logging.WithRequestID(r.Context(), h.logger)

	var req Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		logger.Warn("invalid event body", slog.Any("error", err))
		respond.Error(w, http.StatusBadRequest,
			respond.NewAppError(http.StatusBadRequest, "invalid JSON body", err))
		return
	}

	evt, err := h.toEvent(req)
	if err != nil {
		logger.Warn("rejected event",
			slog.String("trigger", req.Trigger),
			slog.Any("error", err))
		respond.Error(w, http.StatusBadRequest,
			respond.NewAppError(http.StatusBadRequest, err.Error(), err))
		return
	}

	h.emitter.Emit(r.Context(), evt)

	logger.Info("event accepted", slog.String("trigger", string(evt.Trigger)))
	respond.JSON(w, http.StatusAccepted, map[string]string{
		"status":     "accepted",
		"request_id": reqID,
	})
}

func (h *Handler) toEvent(req Request) (entity.Event, error) {
	trigger := entity.Trigger(strings.TrimSpace(req.Trigger))
	if trigger == "" {
		return entity.Event{}, errors.New("trigger is required")
	}

	cart, err := toCart(req.Payload.Cart)
	if err != nil {
		return entity.Event{}, err
	}

	payload := entity.Payload{
		UserID:       req.Payload.UserID,
		Actor:        actor(req.Payload),
		GuestName:    req.Payload.GuestName,
		GuestEmail:   req.Payload.GuestEmail,
		Cart:         cart,
		DiscountCode: req.Payload.DiscountCode,
	}

	if dec, ok := h.decoders[trigger]; ok {
		detail, err := dec.DecodeDetail(trigger, req.Payload.Detail)
		if err != nil {
			return entity.Event{}, fmt.Errorf("invalid detail: %w", err)
		}
		payload.Detail = detail

		if src, ok := dec.(integration.CartSource); ok && len(payload.Cart) == 0 {
			if c := src.CartOf(detail); len(c) > 0 {
				payload.Cart = c
			}
		}
	}

	evt := entity.Event{Trigger: trigger, Payload: payload}
	if req.OccurredAt != nil {
		evt.OccurredAt = *req.OccurredAt
	}
	return evt, nil
}

func actor(p PayloadDTO) *entity.User {
	if p.UserID <= 0 || (p.UserName == "" && p.UserLogin == "" && p.UserEmail == "") {
		return nil
	}
	return &entity.User{ID: p.UserID, DisplayName: p.UserName, Login: p.UserLogin, Email: p.UserEmail}
}

func toCart(in map[string][]int64) (entity.Cart, error) {
	cart := entity.Cart{}
	for key, prices := range in {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid cart product id %q", key)
		}
		if len(prices) == 0 {
			cart.Add(id, 0)
			continue
		}
		for _, p := range prices {
			if p < 0 {
				return nil, fmt.Errorf("invalid price id %d for product %d", p, id)
			}
			cart.Add(id, p)
		}
	}
	return cart, nil
}
