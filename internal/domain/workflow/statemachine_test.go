package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepMachineHappyPath(t *testing.T) {
	m := NewStepMachine()
	assert.Equal(t, StepPending, m.Current())

	require.NoError(t, m.Transition(StepRunning, "dispatched"))
	require.NoError(t, m.Transition(StepSucceeded, "action returned"))

	assert.Equal(t, StepSucceeded, m.Current())
	require.Len(t, m.History(), 2)
	assert.Equal(t, string(StepSucceeded), m.History()[1].To)
}

func TestStepMachineRejectsIllegalTransition(t *testing.T) {
	m := NewStepMachine()
	require.NoError(t, m.Transition(StepRunning, "dispatched"))
	require.NoError(t, m.Transition(StepSucceeded, "done"))

	err := m.Transition(StepRunning, "retry")
	require.Error(t, err)
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, KindExecutionIllegalState, domainErr.Kind)
}

func TestStepMachineRetryLoop(t *testing.T) {
	m := NewStepMachine()
	require.NoError(t, m.Transition(StepRunning, "attempt 1"))
	require.NoError(t, m.Transition(StepRetrying, "attempt 1 failed, retryable"))
	require.NoError(t, m.Transition(StepRunning, "attempt 2"))
	require.NoError(t, m.Transition(StepFailed, "attempt 2 failed, retries exhausted"))

	assert.Equal(t, StepFailed, m.Current())
}

func TestWorkflowMachineHappyPath(t *testing.T) {
	m := NewWorkflowMachine()
	require.NoError(t, m.Transition(WorkflowRunning, "start"))
	require.NoError(t, m.Transition(WorkflowSucceeded, "all steps succeeded"))

	assert.True(t, IsTerminal(m.Current()))
}

func TestWorkflowMachinePartialStatus(t *testing.T) {
	m := NewWorkflowMachine()
	require.NoError(t, m.Transition(WorkflowRunning, "start"))
	require.NoError(t, m.Transition(WorkflowPartial, "one step failed under continue policy"))

	assert.Equal(t, WorkflowPartial, m.Current())
}

func TestWorkflowMachineRejectsTransitionFromTerminal(t *testing.T) {
	m := NewWorkflowMachine()
	require.NoError(t, m.Transition(WorkflowRunning, "start"))
	require.NoError(t, m.Transition(WorkflowFailed, "fatal error"))

	err := m.Transition(WorkflowRunning, "retry")
	require.Error(t, err)
}
