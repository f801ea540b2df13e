package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStepResultIsSuccess(t *testing.T) {
	assert.True(t, StepResult{Status: StepSucceeded}.IsSuccess())
	assert.False(t, StepResult{Status: StepFailed}.IsSuccess())
}

func TestStepResultDuration(t *testing.T) {
	start := time.Now()
	res := StepResult{StartedAt: start, EndedAt: start.Add(2 * time.Second)}
	assert.Equal(t, 2*time.Second, res.Duration())

	zero := StepResult{}
	assert.Equal(t, time.Duration(0), zero.Duration())
}

func TestWorkflowResultFailedSteps(t *testing.T) {
	result := WorkflowResult{
		Steps: map[string]StepResult{
			"a": {StepID: "a", Status: StepSucceeded},
			"b": {StepID: "b", Status: StepFailed},
			"c": {StepID: "c", Status: StepFailed},
		},
	}

	failed := result.FailedSteps()
	assert.ElementsMatch(t, []string{"b", "c"}, failed)
}

func TestWorkflowResultDuration(t *testing.T) {
	start := time.Now()
	result := WorkflowResult{StartedAt: start, EndedAt: start.Add(5 * time.Second)}
	assert.Equal(t, 5*time.Second, result.Duration())
}
