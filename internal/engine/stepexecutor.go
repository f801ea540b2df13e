package engine

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/orbyt/workflow-engine/internal/domain/workflow"
	"github.com/orbyt/workflow-engine/internal/logger"
	"github.com/orbyt/workflow-engine/internal/registry"
)

// StepExecutor runs a single step to completion against a RunContext's scope
// (spec 4.8): resolve condition and input, invoke the registered action
// handler with retry/backoff and timeout isolation, and record the outcome
// back into the scope.
type StepExecutor struct {
	registry *registry.Registry
	log      *logger.Logger
}

// NewStepExecutor returns a StepExecutor dispatching through reg. log may be
// nil, in which case step lifecycle logging is a no-op.
func NewStepExecutor(reg *registry.Registry, log *logger.Logger) *StepExecutor {
	return &StepExecutor{registry: reg, log: log}
}

// Execute runs step, returning its terminal StepResult. It never returns an
// error directly: every failure mode is captured in the result's Status and
// Error fields, since the workflow executor needs the result even when the
// step failed.
func (e *StepExecutor) Execute(runCtx *RunContext, step workflow.Step, defaultTimeout time.Duration) workflow.StepResult {
	machine := workflow.NewStepMachine()
	result := workflow.StepResult{StepID: step.ID, StartedAt: time.Now()}

	resolver := NewResolver(*runCtx.Scope)

	if strings.TrimSpace(step.When) != "" {
		whenVal, err := resolver.Resolve(step.When)
		if err != nil {
			return e.fail(machine, result, workflow.ClassifyException(err))
		}
		if !workflow.Truthy(whenVal) {
			_ = machine.Transition(workflow.StepSkipped, "condition evaluated false")
			result.Status = workflow.StepSkipped
			result.EndedAt = time.Now()
			return result
		}
	}

	handler, err := e.registry.Resolve(step.Uses)
	if err != nil {
		return e.fail(machine, result, workflow.ClassifyException(err))
	}

	maxAttempts := 1
	strategy := workflow.BackoffLinear
	baseDelay := time.Second
	if step.Retry != nil {
		maxAttempts = step.Retry.EffectiveMax()
		if step.Retry.Backoff != "" {
			strategy = step.Retry.Backoff
		}
		if step.Retry.Delay > 0 {
			baseDelay = step.Retry.Delay
		}
	}

	timeout := step.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	e.emit(runCtx, EventStepStarted, step.ID, nil)

	curve := &curveBackOff{strategy: strategy, delay: baseDelay}
	attempts := 0
	var action registry.Result

	operation := func() (registry.Result, error) {
		attempts++
		target := workflow.StepRunning
		if terr := machine.Transition(target, fmt.Sprintf("attempt %d", attempts)); terr != nil {
			return registry.Result{}, backoff.Permanent(terr)
		}

		resolvedWith, err := e.resolveWith(resolver, step.With)
		if err != nil {
			return registry.Result{}, backoff.Permanent(workflow.ClassifyException(err))
		}

		stepCtx, cancel := context.WithTimeout(runCtx.Ctx, timeout)
		defer cancel()

		actionCtx := registry.ActionContext{
			WorkflowName:    runCtx.Scope.Workflow.Name,
			StepID:          step.ID,
			ExecutionID:     runCtx.ExecutionID,
			Log:             e.actionLogFunc(step.ID),
			Secrets:         runCtx.Scope.Secrets,
			CancelToken:     stepCtx,
			TimeoutMs:       timeout.Milliseconds(),
			Env:             mergeEnv(runCtx.Scope.Env, step.Env),
			StepOutputs:     runCtx.Scope.Steps,
			Inputs:          runCtx.Scope.Inputs,
			WorkflowContext: runCtx.Scope.Context,
		}

		type outcome struct {
			res registry.Result
			err error
		}
		done := make(chan outcome, 1)
		go func() {
			res, err := handler.Execute(stepCtx, step.Uses, resolvedWith, actionCtx)
			done <- outcome{res, err}
		}()

		select {
		case o := <-done:
			if o.err != nil {
				return registry.Result{}, e.classifyAdapterError(step.ID, o.err)
			}
			if !o.res.Success && o.res.Error != nil {
				return registry.Result{}, e.classifyAdapterError(step.ID, fmt.Errorf("%s", o.res.Error.Message))
			}
			return o.res, nil
		case <-stepCtx.Done():
			timeoutErr := workflow.New(workflow.KindExecutionTimeout, fmt.Sprintf("%s: action timed out after %s", step.ID, timeout)).
				WithContext(map[string]interface{}{"step_id": step.ID, "timeout_ms": timeout.Milliseconds()})
			return registry.Result{}, backoff.Permanent(timeoutErr)
		}
	}

	action, retryErr := backoff.Retry(runCtx.Ctx, operation,
		backoff.WithBackOff(curve),
		backoff.WithMaxTries(uint(maxAttempts)),
		backoff.WithNotify(func(err error, duration time.Duration) {
			_ = machine.Transition(workflow.StepRetrying, fmt.Sprintf("retrying after %s: %v", duration, err))
		}),
	)

	result.Attempts = attempts
	if retryErr != nil {
		return e.fail(machine, result, workflow.ClassifyException(retryErr))
	}

	mapped := mapOutputs(step.Outputs, action.Output)
	runCtx.Scope.RecordStepOutput(step.ID, map[string]interface{}{
		"output":  action.Output,
		"outputs": mapped,
	})

	_ = machine.Transition(workflow.StepSucceeded, "action succeeded")
	result.Status = workflow.StepSucceeded
	result.Output = action.Output
	result.Outputs = mapped
	result.EndedAt = time.Now()
	e.emit(runCtx, EventStepCompleted, step.ID, map[string]interface{}{"attempts": attempts})
	return result
}

func (e *StepExecutor) resolveWith(resolver *Resolver, with map[string]interface{}) (map[string]interface{}, error) {
	if len(with) == 0 {
		return map[string]interface{}{}, nil
	}
	resolved, err := resolver.Resolve(map[string]interface{}(with))
	if err != nil {
		return nil, err
	}
	m, _ := resolved.(map[string]interface{})
	return m, nil
}

// classifyAdapterError decides whether a handler's returned error is
// retryable before prepending the step id to its message, matching spec
// 4.8's "prepend stepId to message if absent" rule.
func (e *StepExecutor) classifyAdapterError(stepID string, cause error) error {
	domainErr := workflow.ClassifyException(cause)
	if domainErr.Kind == workflow.KindRuntimeInternal {
		domainErr = workflow.New(workflow.KindExecutionAdapterError, cause.Error()).WithCause(cause)
	}
	if !strings.Contains(domainErr.Message, stepID) {
		domainErr.Message = fmt.Sprintf("%s: %s", stepID, domainErr.Message)
	}
	domainErr = domainErr.WithContext(map[string]interface{}{"step_id": stepID})

	if workflow.IsRetryable(domainErr.Kind) {
		return domainErr
	}
	return backoff.Permanent(domainErr)
}

func (e *StepExecutor) fail(machine *workflow.StepMachine, result workflow.StepResult, domainErr *workflow.Error) workflow.StepResult {
	status := workflow.StepFailed
	if domainErr.Kind == workflow.KindExecutionTimeout {
		status = workflow.StepTimeout
	}
	if machine.Current() != status {
		_ = machine.Transition(status, domainErr.Message)
	}
	result.Status = status
	result.Error = domainErr
	result.EndedAt = time.Now()
	return result
}

func (e *StepExecutor) emit(runCtx *RunContext, name, stepID string, payload map[string]interface{}) {
	if runCtx.Bus == nil {
		return
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["step_id"] = stepID
	runCtx.Bus.Publish(Event{Name: name, ExecutionID: runCtx.ExecutionID, At: time.Now(), Payload: payload})
}

func (e *StepExecutor) actionLogFunc(stepID string) func(msg, level string) {
	return func(msg, level string) {
		if e.log == nil {
			return
		}
		scoped := e.log.WithFields(map[string]any{"step_id": stepID})
		switch strings.ToLower(level) {
		case "debug":
			scoped.Debug(msg)
		case "warn", "warning":
			scoped.Warn(msg)
		case "error":
			scoped.Error(nil, msg)
		default:
			scoped.Info(msg)
		}
	}
}

func mergeEnv(base map[string]string, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func mapOutputs(mappings []workflow.OutputMapping, raw interface{}) map[string]interface{} {
	if len(mappings) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(mappings))
	val := workflow.NewValue(raw)
	for _, m := range mappings {
		path := strings.Split(m.Path, ".")
		if resolved, ok := val.Get(path); ok {
			out[m.Alias] = resolved.Raw()
		}
	}
	return out
}

// curveBackOff implements the spec's retry curve (spec 4.8 step 3): linear
// delay*n or exponential delay*2^(n-1), capped at 30s, with up to ±10%
// jitter.
type curveBackOff struct {
	strategy workflow.BackoffStrategy
	delay    time.Duration
	attempt  int
}

const maxBackoff = 30 * time.Second

func (b *curveBackOff) NextBackOff() time.Duration {
	b.attempt++
	var d time.Duration
	switch b.strategy {
	case workflow.BackoffExponential:
		d = b.delay * time.Duration(int64(1)<<uint(b.attempt-1))
	default:
		d = b.delay * time.Duration(b.attempt)
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	jitter := (rand.Float64()*0.2 - 0.1) * float64(d)
	d += time.Duration(jitter)
	if d < 0 {
		d = 0
	}
	return d
}

func (b *curveBackOff) Reset() {
	b.attempt = 0
}
