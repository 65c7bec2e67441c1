package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	authRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_auth_requests_total",
			Help: "Total ingest authentication attempts by result",
		},
		[]string{"result"}, // result: success | failure
	)

	authzCheckDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_auth_check_duration_seconds",
			Help:    "Ingest token validation duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01},
		},
	)
)

func recordAuthRequest(result string) {
	authRequestsTotal.WithLabelValues(result).Inc()
}

func recordAuthzCheckDuration(durationSeconds float64) {
	authzCheckDuration.Observe(durationSeconds)
}
