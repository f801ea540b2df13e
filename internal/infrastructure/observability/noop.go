// Package observability provides default no-op adapters for the
// ports.MetricsCollector and ports.Tracer contracts, so the façade always has
// something to call even when the embedder supplies no real backend.
package observability

import (
	"context"

	"github.com/orbyt/workflow-engine/internal/ports"
)

// NoOpMetrics discards every recorded signal.
type NoOpMetrics struct{}

// IncCounter implements ports.MetricsCollector.
func (NoOpMetrics) IncCounter(context.Context, string, map[string]string) {}

// SetGauge implements ports.MetricsCollector.
func (NoOpMetrics) SetGauge(context.Context, string, float64, map[string]string) {}

// ObserveHistogram implements ports.MetricsCollector.
func (NoOpMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// NewNoOpMetrics returns a ports.MetricsCollector that discards everything.
func NewNoOpMetrics() ports.MetricsCollector {
	return NoOpMetrics{}
}

// NoOpTracer starts spans that record nothing and propagate no context.
type NoOpTracer struct{}

// StartSpan implements ports.Tracer.
func (NoOpTracer) StartSpan(ctx context.Context, _ string, _ ...interface{}) (context.Context, ports.Span) {
	return ctx, noOpSpan{}
}

// Inject implements ports.Tracer.
func (NoOpTracer) Inject(context.Context, interface{}) error { return nil }

// Extract implements ports.Tracer.
func (NoOpTracer) Extract(ctx context.Context, _ interface{}) (context.Context, error) {
	return ctx, nil
}

// NewNoOpTracer returns a ports.Tracer that discards every span.
func NewNoOpTracer() ports.Tracer {
	return NoOpTracer{}
}

type noOpSpan struct{}

func (noOpSpan) SetAttribute(string, interface{})   {}
func (noOpSpan) SetStatus(ports.SpanStatus, string) {}
func (noOpSpan) End()                               {}
