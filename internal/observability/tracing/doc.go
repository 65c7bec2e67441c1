// Package tracing provides OpenTelemetry tracing for the bridge's HTTP
// surface and notification pipeline.
//
// The tracer provider is whatever otel.SetTracerProvider installed; with
// none set, spans are no-ops and trace ids are empty.
package tracing
