package engine

import (
	"fmt"

	"github.com/orbyt/workflow-engine/internal/domain/workflow"
)

// Node is a vertex in the dependency graph: one workflow step plus its
// resolved edges.
type Node struct {
	ID         string
	Step       *workflow.Step
	DependsOn  []string
	Dependents []string
}

// Graph is the dependency graph built from a workflow's step list: out-edges
// (`needs`) and the reverse map (`dependents`), built in a single pass.
type Graph struct {
	Nodes map[string]*Node
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{Nodes: make(map[string]*Node)}
}

// BuildGraph constructs the dependency graph for a workflow definition. Every
// `needs` target must already exist as a node; unknown targets surface as
// VALIDATION_UNKNOWN_STEP, matching the validator's steps phase (spec 4.7.3)
// even though this function is also called standalone by the explain
// generator.
func BuildGraph(steps []workflow.Step) (*Graph, error) {
	g := NewGraph()

	for i := range steps {
		step := &steps[i]
		if _, exists := g.Nodes[step.ID]; exists {
			return nil, workflow.New(workflow.KindValidationDuplicateID, "duplicate step id").
				WithContext(map[string]interface{}{"step_id": step.ID})
		}
		g.Nodes[step.ID] = &Node{ID: step.ID, Step: step}
	}

	for i := range steps {
		step := &steps[i]
		for _, dep := range step.Needs {
			if _, ok := g.Nodes[dep]; !ok {
				return nil, workflow.New(workflow.KindValidationUnknownStep, "needs references an undeclared step").
					WithContext(map[string]interface{}{"step_id": step.ID, "needs": dep})
			}
			g.addEdge(dep, step.ID)
		}
	}

	return g, nil
}

func (g *Graph) addEdge(from, to string) {
	source := g.Nodes[from]
	target := g.Nodes[to]
	source.Dependents = append(source.Dependents, to)
	target.DependsOn = append(target.DependsOn, from)
}

// InDegree returns the number of unresolved dependencies for a node.
func (g *Graph) InDegree(id string) int {
	node, ok := g.Nodes[id]
	if !ok {
		return 0
	}
	return len(node.DependsOn)
}

// String renders the graph as a stable, human-readable edge list, mainly
// useful in tests and in the explanation generator's debug output.
func (g *Graph) String() string {
	out := ""
	for _, id := range sortedIDs(g) {
		out += fmt.Sprintf("%s -> %v\n", id, g.Nodes[id].Dependents)
	}
	return out
}
