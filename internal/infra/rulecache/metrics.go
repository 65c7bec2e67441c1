package rulecache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"slack-bridge/internal/pkg/config"
)

// Metrics tracks rule snapshot refreshes. A nil *Metrics records nothing.
type Metrics struct {
	*config.ConfigMetrics

	RefreshRunsTotal         *prometheus.CounterVec
	RefreshDurationSeconds   prometheus.Histogram
	RulesLoaded              *prometheus.GaugeVec
	LastSuccessfulRefreshAge prometheus.Gauge
}

// NewMetrics registers the refresh metrics with the default registry.
// Call it once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		ConfigMetrics: config.NewConfigMetrics("rule_refresh"),

		RefreshRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rule_refresh_runs_total",
			Help: "Total number of rule snapshot refreshes by status (success/failure)",
		}, []string{"status"}),

		RefreshDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rule_refresh_duration_seconds",
			Help:    "Duration of rule snapshot refreshes in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 30},
		}),

		RulesLoaded: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rule_refresh_rules_loaded",
			Help: "Number of rules in the current snapshot by namespace",
		}, []string{"namespace"}),

		LastSuccessfulRefreshAge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rule_refresh_last_success_timestamp",
			Help: "Unix timestamp of the last successful rule refresh",
		}),
	}
}

func (m *Metrics) recordRun(status string, seconds float64) {
	if m == nil {
		return
	}
	m.RefreshRunsTotal.WithLabelValues(status).Inc()
	m.RefreshDurationSeconds.Observe(seconds)
	if status == "success" {
		m.LastSuccessfulRefreshAge.SetToCurrentTime()
	}
}

func (m *Metrics) setRules(namespace string, n int) {
	if m == nil {
		return
	}
	m.RulesLoaded.WithLabelValues(namespace).Set(float64(n))
}

func (m *Metrics) recordFallback(field string) {
	if m == nil {
		return
	}
	m.RecordValidationError(field)
	m.RecordFallback(field, "default")
}

func (m *Metrics) configLoaded(fallback bool) {
	if m == nil {
		return
	}
	m.SetFallbackActive(fallback)
	m.RecordLoadTimestamp()
}
