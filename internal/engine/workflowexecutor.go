package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orbyt/workflow-engine/internal/domain/workflow"
	"github.com/orbyt/workflow-engine/internal/logger"
	"github.com/orbyt/workflow-engine/internal/registry"
)

// WorkflowExecutor drives a ValidatedPlan phase by phase (spec 4.9),
// grounded on the teacher's per-level goroutine/`sync.WaitGroup`/worker-pool
// executor: one goroutine per step within a phase, bounded by a buffered
// channel sized to the phase's concurrency policy, with all-settled
// semantics and a single shared cancel token for the whole run.
type WorkflowExecutor struct {
	registry *registry.Registry
	steps    *StepExecutor
	state    *ExecutionStateStore
}

// NewWorkflowExecutor returns a WorkflowExecutor dispatching actions through
// reg. log may be nil. The returned executor owns one ExecutionStateStore
// (C7) shared across every Run call, so a record outlives the call that
// produced it and other components can read it back by executionId.
func NewWorkflowExecutor(reg *registry.Registry, log *logger.Logger) *WorkflowExecutor {
	return &WorkflowExecutor{registry: reg, steps: NewStepExecutor(reg, log), state: NewExecutionStateStore()}
}

// State returns the executor's ExecutionStateStore (C7), the sole channel
// through which other components should read a run's step/workflow state
// once Run has returned.
func (e *WorkflowExecutor) State() *ExecutionStateStore {
	return e.state
}

// Run executes def's plan under options, returning the aggregate
// WorkflowResult. def must already have passed validation and planning; Run
// does not re-validate.
func (e *WorkflowExecutor) Run(def workflow.Definition, plan *workflow.ExecutionPlan, options ExecutionOptions, bus *EventBus) workflow.WorkflowResult {
	executionID := uuid.NewString()
	scope := buildScope(def, options)
	scope.Run.ID = executionID

	runCtx := NewRunContext(context.Background(), executionID, options.Timeout, &scope, bus)
	defer runCtx.Cancel()

	machine := workflow.NewWorkflowMachine()
	_ = machine.Transition(workflow.WorkflowRunning, "execution started")
	bus.Publish(Event{Name: EventWorkflowStarted, ExecutionID: executionID, At: time.Now()})

	result := workflow.WorkflowResult{
		RunID:     executionID,
		Status:    workflow.WorkflowRunning,
		StartedAt: time.Now(),
		Steps:     make(map[string]workflow.StepResult, len(def.Steps)),
	}

	policies := def.EffectivePolicies()
	defaultTimeout := def.Defaults.Timeout

	stepByID := buildStepIndex(def)
	stepIDs := make([]string, 0, len(def.Steps))
	for _, step := range def.Steps {
		stepIDs = append(stepIDs, step.ID)
	}
	e.state.Init(executionID, def.Name, stepIDs, scope.Context)

	var fatalErr *workflow.Error
	var fatalStepID string

phaseLoop:
	for _, phase := range plan.Phases {
		degree := phaseConcurrency(len(phase.StepIDs), policies.Concurrency)
		sem := make(chan struct{}, degree)
		var wg sync.WaitGroup
		var mu sync.Mutex
		phaseResults := make([]workflow.StepResult, len(phase.StepIDs))

		for i, stepID := range phase.StepIDs {
			step, ok := stepByID[stepID]
			if !ok {
				continue
			}

			wg.Add(1)
			go func(i int, step workflow.Step) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				if runCtx.Ctx.Err() != nil {
					mu.Lock()
					phaseResults[i] = workflow.StepResult{
						StepID:  step.ID,
						Status:  workflow.StepCancelled,
						EndedAt: time.Now(),
					}
					mu.Unlock()
					return
				}

				stepResult := e.steps.Execute(runCtx, step, defaultTimeout)

				mu.Lock()
				phaseResults[i] = stepResult
				mu.Unlock()
			}(i, step)
		}

		wg.Wait()

		for _, stepResult := range phaseResults {
			if stepResult.StepID == "" {
				continue
			}
			result.Steps[stepResult.StepID] = stepResult
			e.state.UpdateStep(executionID, stepResult)

			if stepResult.Status != workflow.StepFailed && stepResult.Status != workflow.StepCancelled && stepResult.Status != workflow.StepTimeout {
				continue
			}

			step := stepByID[stepResult.StepID]
			continueOnError := options.ContinueOnError || policies.Failure == workflow.FailureContinue || step.ContinueOnError
			if !continueOnError {
				fatalErr = stepResult.Error
				fatalStepID = stepResult.StepID
				bus.Publish(Event{Name: EventStepFailed, ExecutionID: executionID, At: time.Now(), Payload: map[string]interface{}{"step_id": stepResult.StepID}})
				break phaseLoop
			}
		}
	}

	result.EndedAt = time.Now()

	if fatalErr != nil {
		runCtx.Cancel()
		_ = machine.Transition(workflow.WorkflowFailed, "step "+fatalStepID+" failed")
		result.Status = workflow.WorkflowFailed
		result.Error = fatalErr
		e.state.UpdateWorkflow(executionID, result.Status, result.Error)
		bus.Publish(Event{Name: EventWorkflowFailed, ExecutionID: executionID, At: time.Now(), Payload: map[string]interface{}{"step_id": fatalStepID}})
		return result
	}

	status := aggregateStatus(result.Steps, runCtx.Ctx.Err())
	if terr := machine.Transition(status, "execution finished"); terr != nil {
		status = workflow.WorkflowFailed
	}
	result.Status = status
	result.Outputs = computeOutputs(def, scope)
	if status != workflow.WorkflowSucceeded {
		result.Error = workflowStatusError(status, result.Steps)
	}
	e.state.UpdateWorkflow(executionID, result.Status, result.Error)
	bus.Publish(Event{Name: EventWorkflowComplete, ExecutionID: executionID, At: time.Now(), Payload: map[string]interface{}{"status": string(status)}})

	return result
}

// workflowStatusError builds the workflow-level error attached to a
// non-succeeded WorkflowResult, so a caller inspecting result.Error (spec
// section 6's exit-code table) always has a signal to act on even when no
// single step triggered a hard stop.
func workflowStatusError(status workflow.WorkflowStatus, steps map[string]workflow.StepResult) *workflow.Error {
	switch status {
	case workflow.WorkflowTimeout:
		return workflow.New(workflow.KindExecutionTimeout, "workflow deadline exceeded before all steps finished")
	case workflow.WorkflowCancelled:
		return workflow.New(workflow.KindRuntimeCancelled, "workflow run was cancelled before completion")
	case workflow.WorkflowPartial:
		ids := failedStepIDs(steps)
		return workflow.New(workflow.KindExecutionStepFailed, fmt.Sprintf("steps failed: %s", strings.Join(ids, ", "))).
			WithContext(map[string]interface{}{"failed_steps": ids})
	default:
		return nil
	}
}

// failedStepIDs returns the sorted ids of every step that failed or timed
// out, for the workflow-level error's diagnostic message.
func failedStepIDs(steps map[string]workflow.StepResult) []string {
	var ids []string
	for id, r := range steps {
		if r.Status == workflow.StepFailed || r.Status == workflow.StepTimeout {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// buildStepIndex maps every step's id to its declaration for phase dispatch.
func buildStepIndex(def workflow.Definition) map[string]workflow.Step {
	out := make(map[string]workflow.Step, len(def.Steps))
	for _, step := range def.Steps {
		out[step.ID] = step
	}
	return out
}

// phaseConcurrency returns min(phaseSize, policyConcurrency) with a policy
// value of 0 (or below) meaning unbounded.
func phaseConcurrency(phaseSize, policyConcurrency int) int {
	if policyConcurrency <= 0 {
		return phaseSize
	}
	if phaseSize < policyConcurrency {
		return phaseSize
	}
	return policyConcurrency
}

// aggregateStatus computes the workflow's terminal status from its step
// results and the run context's terminal error (spec 4.9 step 5): COMPLETED
// if every step is success/skipped, PARTIAL if some failed but execution was
// allowed to continue, TIMEOUT if the run's deadline fired, CANCELLED if it
// was stopped by an explicit cancel instead.
func aggregateStatus(steps map[string]workflow.StepResult, ctxErr error) workflow.WorkflowStatus {
	anyFailed := false
	for _, r := range steps {
		if r.Status == workflow.StepFailed || r.Status == workflow.StepCancelled || r.Status == workflow.StepTimeout {
			anyFailed = true
		}
	}
	switch {
	case errors.Is(ctxErr, context.DeadlineExceeded):
		return workflow.WorkflowTimeout
	case ctxErr != nil:
		return workflow.WorkflowCancelled
	case anyFailed:
		return workflow.WorkflowPartial
	default:
		return workflow.WorkflowSucceeded
	}
}

// buildScope constructs the run's initial ResolutionScope from the
// definition's defaults/context plus the caller-supplied options (spec 4.9
// step 2).
func buildScope(def workflow.Definition, options ExecutionOptions) workflow.Scope {
	scope := workflow.NewScope()
	scope.Workflow = workflow.WorkflowInfo{
		Name:        def.Name,
		Version:     def.SchemaVersion,
		Description: def.Description,
		Tags:        def.Tags,
		Owner:       def.Owner,
	}
	scope.Run = workflow.RunInfo{
		Attempt:     1,
		TriggeredBy: options.TriggeredBy,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}

	for k, v := range def.Context {
		scope.Context[k] = v
	}
	_ = scope.MergeContext(options.Context)

	scope.Env = mergeEnv(nil, options.Env)

	scope.Inputs = make(map[string]interface{}, len(def.Inputs))
	for name, spec := range def.Inputs {
		if v, ok := options.Inputs[name]; ok {
			scope.Inputs[name] = v
		} else if spec.Default != nil {
			scope.Inputs[name] = spec.Default
		}
	}

	scope.Secrets = options.Secrets
	if scope.Secrets == nil {
		scope.Secrets = map[string]interface{}{}
	}

	for k, v := range options.InternalContext {
		scope.Metadata[k] = v
	}

	return scope
}

// computeOutputs resolves the workflow-level `outputs` block against the
// final scope, once every step has reported its result.
func computeOutputs(def workflow.Definition, scope workflow.Scope) map[string]interface{} {
	if len(def.Outputs) == 0 {
		return nil
	}
	resolver := NewResolver(scope)
	out := make(map[string]interface{}, len(def.Outputs))
	for k, v := range def.Outputs {
		resolved, err := resolver.Resolve(v)
		if err != nil {
			continue
		}
		out[k] = resolved
	}
	return out
}
