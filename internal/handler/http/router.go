// Package http assembles the bridge's HTTP surface: event ingest, Slack
// app callbacks, health, metrics and debug endpoints.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"slack-bridge/internal/handler/http/auth"
	"slack-bridge/internal/handler/http/requestid"
	"slack-bridge/internal/handler/http/slackapp"
	"slack-bridge/internal/observability/tracing"
)

const (
	PathEvents        = "/events"
	PathInteractive   = "/slack-app/interactive-message/submit"
	PathSlash         = "/slack-app/slash-command/submit"
	PathHealth        = "/health"
	PathMetrics       = "/metrics"
	PathDebugDelivery = "/debug/deliveries"
	PathDebugBreakers = "/debug/breakers"
)

// maxBodyBytes bounds every inbound request body.
const maxBodyBytes = 1 << 20

// RouterConfig wires the handlers. Nil handlers leave their routes unset.
type RouterConfig struct {
	Logger *slog.Logger

	Ingest   http.Handler
	Auth     auth.Config
	SlackApp *slackapp.Handler
	Health   *HealthHandler

	Deliveries DeliverySource
	Notifier   NotifierHealth

	// CallbackRate is the per-IP request rate for ingest and Slack
	// callbacks; zero disables limiting.
	CallbackRate  float64
	CallbackBurst int
}

// NewRouter returns the root handler.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	limit := func(h http.Handler) http.Handler { return h }
	if cfg.CallbackRate > 0 {
		burst := cfg.CallbackBurst
		if burst < 1 {
			burst = 1
		}
		limit = NewRateLimiter(cfg.CallbackRate, burst, 10*time.Minute).Limit
	}

	if cfg.Ingest != nil {
		mux.Handle("POST "+PathEvents, limit(auth.Middleware(cfg.Auth)(cfg.Ingest)))
	}
	if cfg.SlackApp != nil {
		mux.Handle("POST "+PathInteractive, limit(cfg.SlackApp.Interactive()))
		mux.Handle("POST "+PathSlash, limit(cfg.SlackApp.Slash()))
	}
	if cfg.Health != nil {
		mux.Handle("GET "+PathHealth, cfg.Health)
	}
	mux.Handle("GET "+PathMetrics, MetricsHandler())
	if cfg.Deliveries != nil {
		mux.Handle("GET "+PathDebugDelivery, DeliveriesHandler(cfg.Deliveries))
	}
	if cfg.Notifier != nil {
		mux.Handle("GET "+PathDebugBreakers, BreakersHandler(cfg.Notifier))
	}

	var h http.Handler = mux
	h = LimitRequestBody(maxBodyBytes)(h)
	h = Recover(cfg.Logger)(h)
	h = Logging(cfg.Logger)(h)
	h = MetricsMiddleware(h)
	h = tracing.Middleware(h)
	h = requestid.Middleware(h)
	return h
}
