package validator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbyt/workflow-engine/internal/domain/workflow"
	"github.com/orbyt/workflow-engine/internal/validator"
)

func TestCheckGraphProducesPhasedPlan(t *testing.T) {
	def := testDefinition(
		workflow.Step{ID: "a", Uses: "core.noop"},
		workflow.Step{ID: "b", Uses: "core.noop", Needs: []string{"a"}},
		workflow.Step{ID: "c", Uses: "core.noop", Needs: []string{"a"}},
	)

	graph, plan, err := validator.CheckGraph(def)
	require.NoError(t, err)
	require.Len(t, plan.Phases, 2)
	assert.Equal(t, []string{"a"}, plan.Phases[0].StepIDs)
	assert.ElementsMatch(t, []string{"b", "c"}, plan.Phases[1].StepIDs)
	assert.Len(t, graph.Nodes, 3)
}

func TestCheckGraphRejectsCycle(t *testing.T) {
	def := testDefinition(
		workflow.Step{ID: "a", Uses: "core.noop", Needs: []string{"b"}},
		workflow.Step{ID: "b", Uses: "core.noop", Needs: []string{"a"}},
	)

	_, _, err := validator.CheckGraph(def)
	require.Error(t, err)
	werr, ok := err.(*workflow.Error)
	require.True(t, ok)
	assert.Equal(t, workflow.KindValidationCircularDep, werr.Kind)
}

func TestValidatedPlanGetStep(t *testing.T) {
	plan := &validator.ValidatedPlan{
		StepByID: map[string]workflow.Step{"a": {ID: "a", Uses: "core.noop"}},
	}

	step, ok := plan.GetStep("a")
	assert.True(t, ok)
	assert.Equal(t, "a", step.ID)

	_, ok = plan.GetStep("missing")
	assert.False(t, ok)
}
