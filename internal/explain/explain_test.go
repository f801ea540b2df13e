package explain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbyt/workflow-engine/internal/actions"
	"github.com/orbyt/workflow-engine/internal/explain"
	"github.com/orbyt/workflow-engine/internal/loader"
	"github.com/orbyt/workflow-engine/internal/registry"
	"github.com/orbyt/workflow-engine/internal/validator"
)

const sampleDoc = `
version: "1"
kind: Workflow
metadata:
  name: demo
  description: a demo workflow
workflow:
  steps:
    - id: fetch
      uses: core.noop
      with:
        url: "${inputs.source}"
    - id: process
      uses: core.noop
      needs: [fetch]
      when: "${steps.fetch.output || false}"
      with:
        payload: "${steps.fetch.output}"
`

func buildPlan(t *testing.T) *validator.ValidatedPlan {
	t.Helper()
	raw, doc, err := loader.Parse([]byte(sampleDoc))
	require.NoError(t, err)

	reg := registry.NewRegistry()
	require.NoError(t, reg.Register(actions.NoopHandler{}))

	plan, err := validator.Validate(raw, doc, reg)
	require.NoError(t, err)
	return plan
}

func TestGenerateSummary(t *testing.T) {
	plan := buildPlan(t)
	exp := explain.Generate(plan)

	assert.Equal(t, "demo", exp.Summary.Name)
	assert.Equal(t, 2, exp.Summary.StepCount)
	assert.Contains(t, exp.Summary.Adapters, "core.noop")
}

func TestGenerateStepBreakdownTracksDataFlow(t *testing.T) {
	plan := buildPlan(t)
	exp := explain.Generate(plan)

	var process explain.StepBreakdown
	for _, step := range exp.Steps {
		if step.ID == "process" {
			process = step
		}
	}

	require.NotEmpty(t, process.ID)
	assert.Equal(t, []string{"fetch"}, process.Needs)

	var sawStepOutput bool
	for _, src := range process.DataSources {
		if src.Kind == "step.output" && src.FromStep == "fetch" {
			sawStepOutput = true
		}
	}
	assert.True(t, sawStepOutput)
}

func TestGenerateConditionalPaths(t *testing.T) {
	plan := buildPlan(t)
	exp := explain.Generate(plan)

	assert.Contains(t, exp.Conditionals.AllTrueExecuted, "fetch")
	assert.Contains(t, exp.Conditionals.AllTrueExecuted, "process")
	assert.Contains(t, exp.Conditionals.AllFalseSkipped, "process")
}

func TestGenerateTimeEstimate(t *testing.T) {
	plan := buildPlan(t)
	exp := explain.Generate(plan)

	assert.NotEmpty(t, exp.Time.CriticalPath)
	assert.GreaterOrEqual(t, exp.Time.TotalEstimated.Nanoseconds(), int64(0))
}

func TestGenerateReportsNoCyclesForAcyclicPlan(t *testing.T) {
	plan := buildPlan(t)
	exp := explain.Generate(plan)
	assert.Empty(t, exp.Cycles)
}
