// Package facade implements the planner façade (C13, spec 4.11): the single
// entry point the CLI and any embedder uses, wrapping validation, execution,
// and explanation behind four calls: LoadAndValidate, Run, Explain, Validate.
package facade

import (
	"context"
	"strings"
	"time"

	"github.com/orbyt/workflow-engine/internal/domain/workflow"
	"github.com/orbyt/workflow-engine/internal/engine"
	"github.com/orbyt/workflow-engine/internal/explain"
	"github.com/orbyt/workflow-engine/internal/infrastructure/observability"
	"github.com/orbyt/workflow-engine/internal/loader"
	"github.com/orbyt/workflow-engine/internal/logger"
	"github.com/orbyt/workflow-engine/internal/ports"
	"github.com/orbyt/workflow-engine/internal/registry"
	"github.com/orbyt/workflow-engine/internal/validator"
)

// reservedContextKeys mirrors the scope's reserved namespace set; a caller's
// run options are stripped of these (and of any `_`-prefixed key) before
// being copied into the scope, per spec 4.11's sanitization requirement.
var reservedContextKeys = map[string]bool{
	"telemetry":  true,
	"resources":  true,
	"compliance": true,
}

// Identity is the bundle the façade records into every run's scope metadata,
// untouchable by workflow authors or caller-supplied context (spec 4.11).
type Identity struct {
	WorkflowOwner string
	ExecutedBy    string
	AuditTag      string
}

// Facade wires the validator, the engine, and the explanation generator
// behind one object, the way the teacher's root command wires its pipeline
// runner and plugin registry behind a single CLI context.
type Facade struct {
	registry *registry.Registry
	log      *logger.Logger
	metrics  ports.MetricsCollector
	tracer   ports.Tracer
	executor *engine.WorkflowExecutor
}

// Option configures optional Facade dependencies.
type Option func(*Facade)

// WithMetrics supplies a real metrics backend (Prometheus, StatsD, ...) in
// place of the no-op default. The façade never imports a concrete backend
// itself; the embedder wires one in.
func WithMetrics(m ports.MetricsCollector) Option {
	return func(f *Facade) { f.metrics = m }
}

// WithTracer supplies a real tracing backend (e.g. OpenTelemetry) in place
// of the no-op default.
func WithTracer(t ports.Tracer) Option {
	return func(f *Facade) { f.tracer = t }
}

// New returns a Facade dispatching action handlers through reg. log may be
// nil, matching the engine's own nil-logger tolerance. Metrics and tracing
// default to no-op adapters until overridden via WithMetrics/WithTracer, so
// callers never have to stand up a real backend just to use the façade.
func New(reg *registry.Registry, log *logger.Logger, opts ...Option) *Facade {
	f := &Facade{
		registry: reg,
		log:      log,
		metrics:  observability.NewNoOpMetrics(),
		tracer:   observability.NewNoOpTracer(),
		executor: engine.NewWorkflowExecutor(reg, log),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ExecutionState returns the façade's ExecutionStateStore (C7): the single
// channel through which a caller reads a run's step/workflow state by
// executionId once Run has returned, instead of reaching into the engine
// package directly. The store is shared by every Run call this Facade
// makes, so it enumerates every execution the façade has driven so far.
func (f *Facade) ExecutionState() *engine.ExecutionStateStore {
	return f.executor.State()
}

// RunOptions is the façade's input to Run (spec section 6, "Execution
// options").
type RunOptions struct {
	Variables       map[string]interface{}
	Env             map[string]string
	Secrets         map[string]interface{}
	Context         map[string]interface{}
	Timeout         time.Duration
	ContinueOnError bool
	DryRun          bool
	TriggeredBy     string
	Identity        Identity
}

// ValidationResult is the façade's Validate return shape (spec 4.11:
// `{valid, errors[]}`).
type ValidationResult struct {
	Valid  bool
	Errors []*workflow.Error
}

// LoadAndValidate runs the full validator pipeline (C9) plus graph planning
// (C3/4/5) over raw workflow document bytes, returning the immutable
// ValidatedPlan every other façade entry point consumes.
func (f *Facade) LoadAndValidate(source []byte) (*validator.ValidatedPlan, error) {
	raw, doc, err := loader.Parse(source)
	if err != nil {
		return nil, err
	}
	return validator.Validate(raw, doc, f.registry)
}

// LoadAndValidateFile is LoadAndValidate given a path instead of bytes.
func (f *Facade) LoadAndValidateFile(path string) (*validator.ValidatedPlan, error) {
	raw, doc, err := loader.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return validator.Validate(raw, doc, f.registry)
}

// Validate is the façade's check-only entry point: it runs the same pipeline
// as LoadAndValidate but reports the outcome instead of propagating the
// first error, matching spec 4.11's `validate(object) → {valid, errors[]}`.
// The current pipeline returns at most one structured error per call (the
// steps phase folds the violations of its checks into one error; see
// DESIGN.md), so Errors holds zero or one entries.
func (f *Facade) Validate(source []byte) ValidationResult {
	ctx, span := f.tracer.StartSpan(context.Background(), "validator.check")
	defer span.End()

	if _, err := f.LoadAndValidate(source); err != nil {
		f.metrics.IncCounter(ctx, "orbyt_validation_checks_total", map[string]string{"status": "fail"})
		span.SetStatus(ports.SpanStatusError, err.Error())
		return ValidationResult{Valid: false, Errors: []*workflow.Error{workflow.ClassifyException(err)}}
	}
	f.metrics.IncCounter(ctx, "orbyt_validation_checks_total", map[string]string{"status": "pass"})
	return ValidationResult{Valid: true}
}

// Run executes a previously validated plan, or validates source first if
// plan is nil (spec 4.11: "if given an un-planned object, calls
// loadAndValidate first"). It injects the sanitized internal execution
// context into the scope before the first step runs.
func (f *Facade) Run(plan *validator.ValidatedPlan, source []byte, opts RunOptions) (workflow.WorkflowResult, error) {
	ctx, span := f.tracer.StartSpan(context.Background(), "workflow.run")
	defer span.End()

	if plan == nil {
		loaded, err := f.LoadAndValidate(source)
		if err != nil {
			span.SetStatus(ports.SpanStatusError, err.Error())
			return workflow.WorkflowResult{}, err
		}
		plan = loaded
	}

	f.metrics.SetGauge(ctx, "orbyt_workflow_active_runs", 1, map[string]string{"workflow": plan.Workflow.Name})
	defer f.metrics.SetGauge(ctx, "orbyt_workflow_active_runs", 0, map[string]string{"workflow": plan.Workflow.Name})

	bus := engine.NewEventBus()
	defer bus.Close()

	options := engine.ExecutionOptions{
		Timeout:         opts.Timeout,
		Env:             opts.Env,
		Inputs:          opts.Variables,
		Secrets:         opts.Secrets,
		Context:         sanitizeContext(opts.Context),
		ContinueOnError: opts.ContinueOnError,
		TriggeredBy:     opts.TriggeredBy,
		InternalContext: map[string]interface{}{
			"identity":  opts.Identity.WorkflowOwner,
			"ownership": plan.Workflow.Owner,
			"billing":   map[string]interface{}{"tag": opts.Identity.AuditTag},
			"usage":     map[string]interface{}{"step_count": len(plan.Workflow.Steps)},
			"audit":     map[string]interface{}{"executed_by": opts.Identity.ExecutedBy, "triggered_by": opts.TriggeredBy},
		},
	}

	if opts.DryRun {
		return workflow.WorkflowResult{
			RunID:     "dry-run",
			Status:    workflow.WorkflowSucceeded,
			StartedAt: time.Now(),
			EndedAt:   time.Now(),
			Steps:     map[string]workflow.StepResult{},
		}, nil
	}

	result := f.executor.Run(plan.Workflow, plan.Plan, options, bus)

	f.metrics.IncCounter(ctx, "orbyt_workflow_runs_total", map[string]string{"status": string(result.Status)})
	f.metrics.ObserveHistogram(ctx, "orbyt_workflow_run_duration_seconds", result.EndedAt.Sub(result.StartedAt).Seconds(), map[string]string{"workflow": plan.Workflow.Name})
	if result.Status == workflow.WorkflowFailed {
		span.SetStatus(ports.SpanStatusError, "workflow run failed")
	}

	return result, nil
}

// Explain produces a dry-run analysis over a validated plan, or validates
// source first if plan is nil.
func (f *Facade) Explain(plan *validator.ValidatedPlan, source []byte) (explain.Explanation, error) {
	if plan == nil {
		loaded, err := f.LoadAndValidate(source)
		if err != nil {
			return explain.Explanation{}, err
		}
		plan = loaded
	}
	return explain.Generate(plan), nil
}

// sanitizeContext strips any key starting with `_` or matching a reserved
// namespace before the caller's context reaches the engine.
// workflow.Scope.MergeContext skips `_` keys itself but stops with an error
// at the first reserved-namespace key, and the executor's buildScope
// discards that error, so without this filter a reserved key would cut the
// merge short and the keys not yet merged would be lost.
func sanitizeContext(untrusted map[string]interface{}) map[string]interface{} {
	if len(untrusted) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(untrusted))
	for k, v := range untrusted {
		if strings.HasPrefix(k, "_") || reservedContextKeys[k] {
			continue
		}
		out[k] = v
	}
	return out
}
