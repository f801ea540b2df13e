package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlFor(t *testing.T) {
	assert.Equal(t, ControlStopWorkflow, ControlFor(SeverityCritical))
	assert.Equal(t, ControlStopWorkflow, ControlFor(SeverityFatal))
	assert.Equal(t, ControlStopWorkflow, ControlFor(SeverityError))
	assert.Equal(t, ControlStopStep, ControlFor(SeverityMedium))
	assert.Equal(t, ControlContinue, ControlFor(SeverityLow))
	assert.Equal(t, ControlContinue, ControlFor(SeverityWarning))
	assert.Equal(t, ControlContinue, ControlFor(SeverityInfo))
}

func TestNewAssignsCatalogFields(t *testing.T) {
	err := New(KindValidationDuplicateID, "duplicate step id: a")
	require.NotNil(t, err)
	assert.Equal(t, "ORB-V-001", err.Code)
	assert.Equal(t, CategoryValidation, err.Category)
	assert.Equal(t, SeverityFatal, err.Severity)
	assert.Equal(t, 1, err.ExitCode)
}

func TestNewUnknownKindFallsBackToInternal(t *testing.T) {
	err := New(Kind("NOT_A_REAL_KIND"), "oops")
	assert.Equal(t, KindRuntimeInternal, err.Kind)
}

func TestErrorChaining(t *testing.T) {
	cause := errors.New("boom")
	err := New(KindExecutionAdapterError, "handler failed").
		WithPath("workflow.steps[0]").
		WithCause(cause).
		WithContext(map[string]interface{}{"step_id": "a"})

	assert.Equal(t, "workflow.steps[0]", err.Path)
	assert.Equal(t, cause, err.Unwrap())
	assert.Equal(t, "a", err.Context["step_id"])
	assert.Contains(t, err.Error(), "ORB-E-002")
	assert.Contains(t, err.Error(), "boom")
}

func TestErrorIsComparesByKind(t *testing.T) {
	a := New(KindValidationDuplicateID, "x")
	b := New(KindValidationDuplicateID, "y")
	c := New(KindValidationUnknownStep, "z")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(KindExecutionTimeout))
	assert.True(t, IsRetryable(KindExecutionAdapterError))
	assert.False(t, IsRetryable(KindValidationDuplicateID))
}

func TestSuggestField(t *testing.T) {
	suggestion, ok := SuggestField("tiemout", []string{"timeout", "retry", "needs"})
	require.True(t, ok)
	assert.Equal(t, "timeout", suggestion)

	_, ok = SuggestField("completely_unrelated_xyz", []string{"timeout", "retry"})
	assert.False(t, ok)
}

func TestClassifyException(t *testing.T) {
	err := ClassifyException(errors.New("circular dependency detected"))
	assert.Equal(t, KindValidationCircularDep, err.Kind)

	err = ClassifyException(errors.New("request timeout after 5s"))
	assert.Equal(t, KindExecutionTimeout, err.Kind)

	err = ClassifyException(errors.New("something unexpected happened"))
	assert.Equal(t, KindRuntimeInternal, err.Kind)
}

func TestClassifyExceptionPassesThroughExistingError(t *testing.T) {
	original := New(KindValidationCircularDep, "cycle: a -> b -> a")
	classified := ClassifyException(original)
	assert.Same(t, original, classified)
}
