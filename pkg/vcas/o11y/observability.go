// Package o11y holds the small observability abstraction the client and
// mock server instrument against. Providers are optional everywhere; a
// nil provider disables instrumentation entirely.
package o11y

import "context"

// MetricsProvider abstracts metrics collection. The otel package supplies
// an OpenTelemetry-backed implementation.
type MetricsProvider interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
	Gauge(name string) Gauge
}

// TracingProvider abstracts request tracing.
type TracingProvider interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Counter is a monotonically increasing metric.
type Counter interface {
	Add(ctx context.Context, value int64, labels ...Label)
}

// Histogram records a distribution of values.
type Histogram interface {
	Record(ctx context.Context, value float64, labels ...Label)
}

// Gauge is a value that can go up and down.
type Gauge interface {
	Set(ctx context.Context, value float64, labels ...Label)
}

// Span is one unit of traced work.
type Span interface {
	SetAttributes(labels ...Label)
	SetStatus(code SpanStatusCode, description string)
	End()
}

// Label is a key-value pair attached to metrics and spans.
type Label struct {
	Key   string
	Value string
}

// SpanStatusCode is the terminal status of a span.
type SpanStatusCode int

const (
	SpanStatusUnset SpanStatusCode = iota
	SpanStatusOK
	SpanStatusError
)
