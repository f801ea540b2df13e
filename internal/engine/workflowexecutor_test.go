package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbyt/workflow-engine/internal/domain/workflow"
	"github.com/orbyt/workflow-engine/internal/registry"
)

func successHandler(name, pattern string) *scriptedHandler {
	return &scriptedHandler{name: name, pattern: pattern, execute: func(n int, input map[string]interface{}) (registry.Result, error) {
		return registry.Result{Success: true, Output: "ok"}, nil
	}}
}

func failHandler(name, pattern, code string) *scriptedHandler {
	return &scriptedHandler{name: name, pattern: pattern, execute: func(n int, input map[string]interface{}) (registry.Result, error) {
		return registry.Result{}, &registry.ActionError{Message: "denied", Code: code}
	}}
}

func planFor(t *testing.T, steps []workflow.Step) *workflow.ExecutionPlan {
	t.Helper()
	g, err := BuildGraph(steps)
	require.NoError(t, err)
	plan, err := Plan(g)
	require.NoError(t, err)
	return plan
}

func TestWorkflowExecutorAllStepsSucceed(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, reg.Register(successHandler("noop", "noop")))

	def := workflow.Definition{
		Name: "deploy",
		Steps: []workflow.Step{
			{ID: "a", Uses: "noop"},
			{ID: "b", Uses: "noop", Needs: []string{"a"}},
		},
	}
	plan := planFor(t, def.Steps)

	exec := NewWorkflowExecutor(reg, nil)
	result := exec.Run(def, plan, ExecutionOptions{}, NewEventBus())

	assert.Equal(t, workflow.WorkflowSucceeded, result.Status)
	assert.Len(t, result.Steps, 2)
	assert.Equal(t, workflow.StepSucceeded, result.Steps["a"].Status)
	assert.Equal(t, workflow.StepSucceeded, result.Steps["b"].Status)
}

func TestWorkflowExecutorStopsOnFatalFailure(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, reg.Register(failHandler("bad", "bad.run", "RUNTIME_PERMISSION_DENIED")))
	require.NoError(t, reg.Register(successHandler("noop", "noop")))

	def := workflow.Definition{
		Name: "deploy",
		Steps: []workflow.Step{
			{ID: "a", Uses: "bad.run"},
			{ID: "b", Uses: "noop", Needs: []string{"a"}},
		},
	}
	plan := planFor(t, def.Steps)

	exec := NewWorkflowExecutor(reg, nil)
	result := exec.Run(def, plan, ExecutionOptions{}, NewEventBus())

	assert.Equal(t, workflow.WorkflowFailed, result.Status)
	assert.Equal(t, workflow.StepFailed, result.Steps["a"].Status)
	_, reached := result.Steps["b"]
	assert.False(t, reached)
}

func TestWorkflowExecutorContinuesOnErrorYieldsPartial(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, reg.Register(failHandler("bad", "bad.run", "RUNTIME_PERMISSION_DENIED")))
	require.NoError(t, reg.Register(successHandler("noop", "noop")))

	def := workflow.Definition{
		Name: "deploy",
		Steps: []workflow.Step{
			{ID: "a", Uses: "bad.run", ContinueOnError: true},
			{ID: "b", Uses: "noop", Needs: []string{"a"}},
		},
	}
	plan := planFor(t, def.Steps)

	exec := NewWorkflowExecutor(reg, nil)
	result := exec.Run(def, plan, ExecutionOptions{}, NewEventBus())

	assert.Equal(t, workflow.WorkflowPartial, result.Status)
	assert.Equal(t, workflow.StepFailed, result.Steps["a"].Status)
	assert.Equal(t, workflow.StepSucceeded, result.Steps["b"].Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, workflow.KindExecutionStepFailed, result.Error.Kind)
	assert.Equal(t, 2, result.Error.ExitCode)
}

func TestWorkflowExecutorTimeoutYieldsWorkflowTimeoutWithError(t *testing.T) {
	reg := registry.NewRegistry()
	slow := &scriptedHandler{name: "slow", pattern: "slow.run", execute: func(n int, input map[string]interface{}) (registry.Result, error) {
		time.Sleep(50 * time.Millisecond)
		return registry.Result{Success: true}, nil
	}}
	require.NoError(t, reg.Register(slow))

	def := workflow.Definition{
		Name:     "deploy",
		Defaults: workflow.Defaults{Timeout: time.Second},
		Steps:    []workflow.Step{{ID: "a", Uses: "slow.run", ContinueOnError: true}},
	}
	plan := planFor(t, def.Steps)

	exec := NewWorkflowExecutor(reg, nil)
	result := exec.Run(def, plan, ExecutionOptions{Timeout: 5 * time.Millisecond}, NewEventBus())

	assert.Equal(t, workflow.WorkflowTimeout, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, workflow.KindExecutionTimeout, result.Error.Kind)
	assert.Equal(t, 3, result.Error.ExitCode)
}

func TestWorkflowExecutorRecordsExecutionState(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, reg.Register(successHandler("noop", "noop")))

	def := workflow.Definition{
		Name:  "deploy",
		Steps: []workflow.Step{{ID: "a", Uses: "noop"}},
	}
	plan := planFor(t, def.Steps)

	exec := NewWorkflowExecutor(reg, nil)
	result := exec.Run(def, plan, ExecutionOptions{}, NewEventBus())

	record, ok := exec.State().Get(result.RunID)
	require.True(t, ok)
	assert.Equal(t, workflow.WorkflowSucceeded, record.Status)
	assert.Equal(t, 1, record.Completed)
	assert.True(t, exec.State().IsStepSuccess(result.RunID, "a"))
	assert.True(t, exec.State().IsStepTerminal(result.RunID, "a"))
	assert.Contains(t, exec.State().ExecutionIDs(), result.RunID)
	assert.Empty(t, exec.State().FailedSteps(result.RunID))
}

func TestWorkflowExecutorEmitsLifecycleEvents(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, reg.Register(successHandler("noop", "noop")))

	def := workflow.Definition{
		Name:  "deploy",
		Steps: []workflow.Step{{ID: "a", Uses: "noop"}},
	}
	plan := planFor(t, def.Steps)
	bus := NewEventBus()

	var seen []string
	done := make(chan struct{}, 1)
	bus.Subscribe(EventWorkflowComplete, func(evt Event) {
		seen = append(seen, evt.Name)
		done <- struct{}{}
	}, nil)

	exec := NewWorkflowExecutor(reg, nil)
	exec.Run(def, plan, ExecutionOptions{}, bus)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for workflow.completed event")
	}
	assert.Contains(t, seen, EventWorkflowComplete)
}

func TestPhaseConcurrencyRespectsPolicy(t *testing.T) {
	assert.Equal(t, 2, phaseConcurrency(5, 2))
	assert.Equal(t, 3, phaseConcurrency(3, 5))
	assert.Equal(t, 4, phaseConcurrency(4, 0))
}

func TestBuildScopeAppliesInputDefaults(t *testing.T) {
	def := workflow.Definition{
		Name: "deploy",
		Inputs: map[string]workflow.InputSpec{
			"region": {Default: "us-east-1"},
		},
	}
	scope := buildScope(def, ExecutionOptions{})
	assert.Equal(t, "us-east-1", scope.Inputs["region"])
}

func TestBuildScopeOverridesDefaultsWithOptions(t *testing.T) {
	def := workflow.Definition{
		Name: "deploy",
		Inputs: map[string]workflow.InputSpec{
			"region": {Default: "us-east-1"},
		},
	}
	scope := buildScope(def, ExecutionOptions{Inputs: map[string]interface{}{"region": "eu-west-1"}})
	assert.Equal(t, "eu-west-1", scope.Inputs["region"])
}
