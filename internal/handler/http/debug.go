package http

import (
	"net/http"
	"strconv"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/handler/http/respond"
)

// DeliverySource returns recent deliveries, oldest first.
type DeliverySource interface {
	Recent() []entity.Delivery
}

type deliveryDTO struct {
	ID         string `json:"id"`
	EventID    string `json:"event_id"`
	RuleID     int64  `json:"rule_id"`
	Namespace  string `json:"namespace"`
	Trigger    string `json:"trigger"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Attempts   int    `json:"attempts"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	CreatedAt  string `json:"created_at"`
}

// DeliveriesHandler serves GET /debug/deliveries?limit=N, newest first.
func DeliveriesHandler(src DeliverySource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recent := src.Recent()

		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				respond.Error(w, http.StatusBadRequest,
					respond.NewAppError(http.StatusBadRequest, "limit must be a positive integer", err))
				return
			}
			if n < len(recent) {
				recent = recent[len(recent)-n:]
			}
		}

		out := make([]deliveryDTO, 0, len(recent))
		for i := len(recent) - 1; i >= 0; i-- {
			d := recent[i]
			out = append(out, deliveryDTO{
				ID:         d.ID,
				EventID:    d.EventID,
				RuleID:     d.RuleID,
				Namespace:  d.Namespace,
				Trigger:    string(d.Trigger),
				Status:     string(d.Status),
				Reason:     d.Reason,
				Kind:       d.Kind,
				Attempts:   d.Attempts,
				Error:      d.Error,
				DurationMS: d.Duration.Milliseconds(),
				CreatedAt:  d.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			})
		}
		respond.JSON(w, http.StatusOK, map[string]any{"deliveries": out})
	}
}

type destinationDTO struct {
	Name               string `json:"name"`
	State              string `json:"state"`
	CircuitBreakerOpen bool   `json:"circuit_breaker_open"`
}

// BreakersHandler serves GET /debug/breakers.
func BreakersHandler(n NotifierHealth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dests := n.Health()
		out := make([]destinationDTO, 0, len(dests))
		for _, d := range dests {
			out = append(out, destinationDTO{Name: d.Name, State: d.State, CircuitBreakerOpen: d.CircuitBreakerOpen})
		}
		respond.JSON(w, http.StatusOK, map[string]any{"destinations": out})
	}
}
