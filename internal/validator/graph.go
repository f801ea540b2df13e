package validator

import (
	"github.com/orbyt/workflow-engine/internal/domain/workflow"
	"github.com/orbyt/workflow-engine/internal/engine"
)

// ValidatedPlan is the validator's output: an immutable, shareable bundle of
// the workflow, its dependency graph, and the phased execution plan (spec
// 4.7's closing paragraph and the Glossary's ValidatedPlan entry).
type ValidatedPlan struct {
	Workflow workflow.Definition
	Graph    *engine.Graph
	Plan     *workflow.ExecutionPlan
	StepByID map[string]workflow.Step
}

// GetStep retrieves a step by id from the validated plan.
func (p *ValidatedPlan) GetStep(id string) (workflow.Step, bool) {
	step, ok := p.StepByID[id]
	return step, ok
}

// CheckGraph is phase 4 of the validator (spec 4.7.4): build the dependency
// graph and detect cycles before handing back the topological phase plan.
func CheckGraph(def workflow.Definition) (*engine.Graph, *workflow.ExecutionPlan, error) {
	graph, err := engine.BuildGraph(def.Steps)
	if err != nil {
		return nil, nil, err
	}

	if cycle, err := engine.DetectCycle(graph); err != nil {
		_ = cycle
		return nil, nil, err
	}

	plan, err := engine.Plan(graph)
	if err != nil {
		return nil, nil, err
	}

	timing := engine.AnalyzeTiming(graph, plan)
	plan.CriticalPath = timing.CriticalPath
	plan.EstimatedRuntime = timing.TotalDuration
	plan.Slack = timing.Slack

	return graph, plan, nil
}
