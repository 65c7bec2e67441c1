package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for notification system monitoring
var (
	// eventsReceivedTotal tracks events handed to the service per trigger
	eventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_events_received_total",
			Help: "Total number of store events received",
		},
		[]string{"trigger"},
	)

	// ruleOutcomesTotal tracks per-rule results
	ruleOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_rule_outcomes_total",
			Help: "Total number of rule outcomes",
		},
		[]string{"trigger", "status"}, // status: sent|bailed|skipped|failed|dropped
	)

	// notificationDuration tracks send duration including retries
	notificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_duration_seconds",
			Help:    "Notification send duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30}, // 100ms to 30s
		},
		[]string{"kind"},
	)

	// notificationRetriesTotal tracks extra attempts per transport kind
	notificationRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_retries_total",
			Help: "Total number of retried send attempts",
		},
		[]string{"kind"},
	)

	// circuitBreakerOpenTotal tracks circuit breaker open events
	circuitBreakerOpenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_circuit_breaker_open_total",
			Help: "Total number of circuit breaker open events",
		},
		[]string{"kind"},
	)

	// eventsDroppedTotal tracks events dropped before any rule ran
	eventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_events_dropped_total",
			Help: "Total number of dropped events",
		},
		[]string{"reason"}, // reason: queue_full|shutdown
	)

	// queueDepth tracks events waiting for a worker
	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_queue_depth",
			Help: "Number of events waiting for a worker",
		},
	)

	// activeWorkers tracks workers currently processing an event
	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_active_workers",
			Help: "Number of workers processing an event",
		},
	)
)

// RecordEvent records an event handed to the service.
func RecordEvent(trigger string) {
	eventsReceivedTotal.WithLabelValues(trigger).Inc()
}

// RecordOutcome records the terminal status of one rule.
func RecordOutcome(trigger, status string) {
	ruleOutcomesTotal.WithLabelValues(trigger, status).Inc()
}

// RecordSend records the duration of a send including retries.
//
// Parameters:
//   - kind: transport kind (webhook, web_api)
//   - duration: time from first attempt to final result
//   - attempts: number of attempts made
func RecordSend(kind string, duration time.Duration, attempts int) {
	notificationDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if attempts > 1 {
		notificationRetriesTotal.WithLabelValues(kind).Add(float64(attempts - 1))
	}
}

// RecordCircuitBreakerOpen records a circuit breaker open event.
func RecordCircuitBreakerOpen(kind string) {
	circuitBreakerOpenTotal.WithLabelValues(kind).Inc()
}

// RecordDropped records an event dropped before dispatch.
func RecordDropped(reason string) {
	eventsDroppedTotal.WithLabelValues(reason).Inc()
}

// SetQueueDepth sets the number of queued events.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// IncrementActiveWorkers increments the active workers gauge by 1.
func IncrementActiveWorkers() {
	activeWorkers.Inc()
}

// DecrementActiveWorkers decrements the active workers gauge by 1.
func DecrementActiveWorkers() {
	activeWorkers.Dec()
}
