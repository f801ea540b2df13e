package ports

import "context"

// MetricsCollector records quantitative observability signals. The interface is
// intentionally generic so adapters can back onto Prometheus, StatsD, or
// vendor-specific SDKs, without the engine importing any of them directly.
// Standard metric names include:
//   - Counters:
//     orbyt_workflow_runs_total{status="succeeded|failed|cancelled|partial|timeout"}
//     orbyt_step_executions_total{uses="...", status="succeeded|failed|skipped"}
//     orbyt_validation_checks_total{phase="security|shape|steps|graph", status="pass|fail"}
//   - Gauges:
//     orbyt_workflow_active_runs
//     orbyt_step_parallel_executions
//   - Histograms:
//     orbyt_workflow_run_duration_seconds
//     orbyt_step_execution_duration_seconds{uses="..."}
//     orbyt_validation_duration_seconds{phase="..."}
type MetricsCollector interface {
	IncCounter(ctx context.Context, name string, labels map[string]string)
	SetGauge(ctx context.Context, name string, value float64, labels map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, labels map[string]string)
}

// Tracer manages distributed tracing spans. Span names follow the convention
// `<component>.<operation>` (e.g., `workflow.run`, `step.execute`,
// `validator.check`). Adapters should propagate correlation IDs and
// integrate with the chosen tracing backend (e.g., OpenTelemetry).
type Tracer interface {
	StartSpan(ctx context.Context, name string, attributes ...interface{}) (context.Context, Span)
	Inject(ctx context.Context, carrier interface{}) error
	Extract(ctx context.Context, carrier interface{}) (context.Context, error)
}

// Span represents an active tracing span.
type Span interface {
	SetAttribute(key string, value interface{})
	SetStatus(status SpanStatus, message string)
	End()
}

// SpanStatus provides strongly typed span result semantics.
type SpanStatus string

const (
	SpanStatusOK    SpanStatus = "ok"
	SpanStatusError SpanStatus = "error"
)
