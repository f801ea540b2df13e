package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbyt/workflow-engine/internal/domain/workflow"
	"github.com/orbyt/workflow-engine/internal/registry"
)

type scriptedHandler struct {
	name    string
	pattern string
	execute func(attempt int, input map[string]interface{}) (registry.Result, error)
	calls   int32
}

func (h *scriptedHandler) Name() string              { return h.name }
func (h *scriptedHandler) Version() string            { return "1.0.0" }
func (h *scriptedHandler) SupportedActions() []string { return []string{h.pattern} }
func (h *scriptedHandler) Capabilities() registry.Capabilities {
	return registry.Capabilities{Concurrent: true}
}
func (h *scriptedHandler) Execute(ctx context.Context, action string, input map[string]interface{}, actionCtx registry.ActionContext) (registry.Result, error) {
	n := int(atomic.AddInt32(&h.calls, 1))
	return h.execute(n, input)
}

func newTestRunContext(t *testing.T) *RunContext {
	t.Helper()
	scope := workflow.NewScope()
	scope.Workflow = workflow.WorkflowInfo{Name: "test-workflow"}
	return NewRunContext(context.Background(), "exec-1", 0, &scope, NewEventBus())
}

func TestStepExecutorSkipsWhenConditionFalse(t *testing.T) {
	reg := registry.NewRegistry()
	exec := NewStepExecutor(reg, nil)
	runCtx := newTestRunContext(t)

	step := workflow.Step{ID: "s1", Uses: "noop", When: "${false}"}
	result := exec.Execute(runCtx, step, 5*time.Second)

	assert.Equal(t, workflow.StepSkipped, result.Status)
}

func TestStepExecutorSucceedsAndMapsOutputs(t *testing.T) {
	reg := registry.NewRegistry()
	handler := &scriptedHandler{name: "http", pattern: "http.get", execute: func(n int, input map[string]interface{}) (registry.Result, error) {
		return registry.Result{Success: true, Output: map[string]interface{}{"body": map[string]interface{}{"id": "abc"}}}, nil
	}}
	require.NoError(t, reg.Register(handler))

	exec := NewStepExecutor(reg, nil)
	runCtx := newTestRunContext(t)

	step := workflow.Step{
		ID:   "fetch",
		Uses: "http.get",
		With: map[string]interface{}{"url": "${inputs.missing || 'http://example.com'}"},
		Outputs: []workflow.OutputMapping{
			{Alias: "id", Path: "body.id"},
		},
	}

	result := exec.Execute(runCtx, step, 5*time.Second)
	require.Equal(t, workflow.StepSucceeded, result.Status)
	assert.Equal(t, "abc", result.Outputs["id"])
	assert.Equal(t, 1, result.Attempts)

	stored, ok := runCtx.Scope.Steps["fetch"]
	require.True(t, ok)
	storedMap := stored.(map[string]interface{})
	assert.Equal(t, result.Output, storedMap["output"])
}

func TestStepExecutorRetriesRetryableErrorThenSucceeds(t *testing.T) {
	reg := registry.NewRegistry()
	handler := &scriptedHandler{name: "flaky", pattern: "flaky.run", execute: func(n int, input map[string]interface{}) (registry.Result, error) {
		if n < 3 {
			return registry.Result{}, &registry.ActionError{Message: "temporary timeout", Code: "EXECUTION_TIMEOUT"}
		}
		return registry.Result{Success: true, Output: "done"}, nil
	}}
	require.NoError(t, reg.Register(handler))

	exec := NewStepExecutor(reg, nil)
	runCtx := newTestRunContext(t)

	step := workflow.Step{
		ID:    "flaky",
		Uses:  "flaky.run",
		Retry: &workflow.RetryPolicy{Max: 5, Backoff: workflow.BackoffLinear, Delay: time.Millisecond},
	}

	result := exec.Execute(runCtx, step, 5*time.Second)
	require.Equal(t, workflow.StepSucceeded, result.Status)
	assert.Equal(t, 3, result.Attempts)
}

func TestStepExecutorFailsWithoutRetryOnNonRetryableError(t *testing.T) {
	reg := registry.NewRegistry()
	handler := &scriptedHandler{name: "bad", pattern: "bad.run", execute: func(n int, input map[string]interface{}) (registry.Result, error) {
		return registry.Result{}, &registry.ActionError{Message: "permission denied", Code: "RUNTIME_PERMISSION_DENIED"}
	}}
	require.NoError(t, reg.Register(handler))

	exec := NewStepExecutor(reg, nil)
	runCtx := newTestRunContext(t)

	step := workflow.Step{
		ID:    "bad",
		Uses:  "bad.run",
		Retry: &workflow.RetryPolicy{Max: 5, Delay: time.Millisecond},
	}

	result := exec.Execute(runCtx, step, 5*time.Second)
	require.Equal(t, workflow.StepFailed, result.Status)
	assert.Equal(t, 1, result.Attempts)
}

func TestStepExecutorUnknownAdapterFails(t *testing.T) {
	reg := registry.NewRegistry()
	exec := NewStepExecutor(reg, nil)
	runCtx := newTestRunContext(t)

	step := workflow.Step{ID: "s1", Uses: "does.not.exist"}
	result := exec.Execute(runCtx, step, time.Second)

	require.Equal(t, workflow.StepFailed, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, workflow.KindValidationUnknownAdapter, result.Error.Kind)
}

func TestStepExecutorTimesOutTerminalWithoutRetry(t *testing.T) {
	reg := registry.NewRegistry()
	handler := &scriptedHandler{name: "slow", pattern: "slow.run", execute: func(n int, input map[string]interface{}) (registry.Result, error) {
		time.Sleep(100 * time.Millisecond)
		return registry.Result{Success: true}, nil
	}}
	require.NoError(t, reg.Register(handler))

	exec := NewStepExecutor(reg, nil)
	runCtx := newTestRunContext(t)

	step := workflow.Step{
		ID:      "slow",
		Uses:    "slow.run",
		Timeout: 5 * time.Millisecond,
		Retry:   &workflow.RetryPolicy{Max: 3, Delay: time.Millisecond},
	}

	result := exec.Execute(runCtx, step, time.Second)
	require.Equal(t, workflow.StepTimeout, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, workflow.KindExecutionTimeout, result.Error.Kind)
	assert.Equal(t, 1, result.Attempts)
}
