package facade_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbyt/workflow-engine/internal/actions"
	"github.com/orbyt/workflow-engine/internal/domain/workflow"
	"github.com/orbyt/workflow-engine/internal/facade"
	"github.com/orbyt/workflow-engine/internal/registry"
)

// recordingMetrics captures counter increments so tests can assert a run
// actually reported through the façade's optional metrics dependency.
type recordingMetrics struct {
	mu       sync.Mutex
	counters []string
}

func (m *recordingMetrics) IncCounter(_ context.Context, name string, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, name)
}

func (m *recordingMetrics) SetGauge(context.Context, string, float64, map[string]string)       {}
func (m *recordingMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func (m *recordingMetrics) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.counters...)
}

const sampleDoc = `
version: "1"
kind: Workflow
metadata:
  name: demo
  owner: platform-team
workflow:
  steps:
    - id: fetch
      uses: core.noop
      with:
        value: hello
`

func newFacade(t *testing.T) *facade.Facade {
	t.Helper()
	reg := registry.NewRegistry()
	require.NoError(t, reg.Register(actions.NoopHandler{}))
	return facade.New(reg, nil)
}

func TestLoadAndValidateReturnsValidatedPlan(t *testing.T) {
	f := newFacade(t)
	plan, err := f.LoadAndValidate([]byte(sampleDoc))
	require.NoError(t, err)
	assert.Equal(t, "demo", plan.Workflow.Name)
}

func TestValidateReportsInvalidDocument(t *testing.T) {
	f := newFacade(t)
	result := f.Validate([]byte("not: [valid"))
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
}

func TestRunExecutesValidatedPlan(t *testing.T) {
	f := newFacade(t)
	plan, err := f.LoadAndValidate([]byte(sampleDoc))
	require.NoError(t, err)

	result, err := f.Run(plan, nil, facade.RunOptions{
		Identity: facade.Identity{WorkflowOwner: "owner-1", ExecutedBy: "tester"},
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.WorkflowSucceeded, result.Status)
	assert.Contains(t, result.Steps, "fetch")
}

func TestRunDryRunSkipsExecution(t *testing.T) {
	f := newFacade(t)
	plan, err := f.LoadAndValidate([]byte(sampleDoc))
	require.NoError(t, err)

	result, err := f.Run(plan, nil, facade.RunOptions{DryRun: true})
	require.NoError(t, err)
	assert.Empty(t, result.Steps)
}

func TestRunReportsThroughCustomMetricsAdapter(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, reg.Register(actions.NoopHandler{}))
	metrics := &recordingMetrics{}
	f := facade.New(reg, nil, facade.WithMetrics(metrics))

	plan, err := f.LoadAndValidate([]byte(sampleDoc))
	require.NoError(t, err)

	_, err = f.Run(plan, nil, facade.RunOptions{})
	require.NoError(t, err)

	assert.Contains(t, metrics.names(), "orbyt_workflow_runs_total")
}

func TestExplainBuildsReport(t *testing.T) {
	f := newFacade(t)
	plan, err := f.LoadAndValidate([]byte(sampleDoc))
	require.NoError(t, err)

	exp, err := f.Explain(plan, nil)
	require.NoError(t, err)
	assert.Equal(t, "demo", exp.Summary.Name)
}
