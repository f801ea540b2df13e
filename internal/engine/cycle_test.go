package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/orbyt/workflow-engine/internal/domain/workflow"
)

func TestDetectCycleNone(t *testing.T) {
	g, err := BuildGraph([]workflow.Step{
		{ID: "a", Uses: "noop"},
		{ID: "b", Uses: "noop", Needs: []string{"a"}},
	})
	require.NoError(t, err)

	cycle, err := DetectCycle(g)
	assert.NoError(t, err)
	assert.Nil(t, cycle)
}

func TestDetectCycleDirect(t *testing.T) {
	g := NewGraph()
	g.Nodes["a"] = &Node{ID: "a"}
	g.Nodes["b"] = &Node{ID: "b"}
	g.addEdge("a", "b")
	g.addEdge("b", "a")

	cycle, err := DetectCycle(g)
	require.Error(t, err)
	var domainErr *workflow.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, workflow.KindValidationCircularDep, domainErr.Kind)
	require.NotEmpty(t, cycle)
	assert.Equal(t, cycle[0], cycle[len(cycle)-1])
}

func TestFindStronglyConnectedComponents(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"a", "b", "c"} {
		g.Nodes[id] = &Node{ID: id}
	}
	g.addEdge("a", "b")
	g.addEdge("b", "c")
	g.addEdge("c", "a")

	sccs := FindStronglyConnectedComponents(g)
	require.Len(t, sccs, 1)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, sccs[0])
}

func TestFindStronglyConnectedComponentsAcyclic(t *testing.T) {
	g, err := BuildGraph([]workflow.Step{
		{ID: "a", Uses: "noop"},
		{ID: "b", Uses: "noop", Needs: []string{"a"}},
	})
	require.NoError(t, err)

	assert.Empty(t, FindStronglyConnectedComponents(g))
}
