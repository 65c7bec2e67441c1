package http

import (
	"context"
	"net/http"
	"time"

	"slack-bridge/internal/handler/http/respond"
	"slack-bridge/internal/usecase/notify"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string                 `json:"status"`    // "healthy", "degraded" or "unhealthy"
	Timestamp string                 `json:"timestamp"` // RFC 3339
	Checks    map[string]CheckStatus `json:"checks"`
	Version   string                 `json:"version"`
}

// CheckStatus is the result of one health check.
type CheckStatus struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// NotifierHealth reports destination and token state.
type NotifierHealth interface {
	Health() []notify.DestinationHealth
	AuthWarnings() []notify.AuthWarning
}

// RuleFreshness reports when rules were last loaded.
type RuleFreshness interface {
	LoadedAt() time.Time
}

// HealthHandler serves GET /health. Only a failing rule store makes the
// bridge unhealthy; open breakers and rejected tokens degrade it.
type HealthHandler struct {
	DB       Pinger
	Notifier NotifierHealth
	Rules    RuleFreshness
	Version  string
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]CheckStatus)
	status := "healthy"
	degrade := func() {
		if status == "healthy" {
			status = "degraded"
		}
	}

	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			checks["database"] = CheckStatus{Status: "unhealthy", Message: respond.SanitizeError(err)}
			status = "unhealthy"
		} else {
			checks["database"] = CheckStatus{Status: "healthy"}
		}
	}

	if h.Rules != nil {
		loaded := h.Rules.LoadedAt()
		if loaded.IsZero() {
			checks["rules"] = CheckStatus{Status: "degraded", Message: "rule snapshot not loaded yet"}
			degrade()
		} else {
			checks["rules"] = CheckStatus{
				Status:  "healthy",
				Details: map[string]any{"loaded_at": loaded.UTC().Format(time.RFC3339)},
			}
		}
	}

	if h.Notifier != nil {
		open := make([]string, 0)
		for _, d := range h.Notifier.Health() {
			if d.CircuitBreakerOpen {
				open = append(open, d.Name)
			}
		}
		if len(open) > 0 {
			checks["destinations"] = CheckStatus{
				Status:  "degraded",
				Message: "circuit breaker open",
				Details: map[string]any{"open": open},
			}
			degrade()
		} else {
			checks["destinations"] = CheckStatus{Status: "healthy"}
		}

		if warnings := h.Notifier.AuthWarnings(); len(warnings) > 0 {
			ns := make([]string, 0, len(warnings))
			for _, w := range warnings {
				ns = append(ns, w.Namespace)
			}
			checks["slack_auth"] = CheckStatus{
				Status:  "degraded",
				Message: "Slack rejected the bot token; reconnect the app",
				Details: map[string]any{"namespaces": ns},
			}
			degrade()
		} else {
			checks["slack_auth"] = CheckStatus{Status: "healthy"}
		}
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	respond.JSON(w, code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Version:   h.Version,
	})
}
