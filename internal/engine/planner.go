package engine

import (
	"sort"
	"time"

	"github.com/orbyt/workflow-engine/internal/domain/workflow"
)

// Plan runs Kahn's algorithm over the graph to produce phases: repeatedly
// take every node with in-degree 0 not yet emitted, emit them together as
// the next phase, then decrement in-degree of their dependents (spec 4.3).
// If nodes remain with no zero in-degree candidate, DetectCycle supplies the
// offending path for the error.
func Plan(g *Graph) (*workflow.ExecutionPlan, error) {
	indegree := make(map[string]int, len(g.Nodes))
	for id, node := range g.Nodes {
		indegree[id] = len(node.DependsOn)
	}

	remaining := len(g.Nodes)
	var phases []workflow.Phase
	phaseIndex := 0

	for remaining > 0 {
		var ready []string
		for id, deg := range indegree {
			if deg == 0 {
				ready = append(ready, id)
			}
		}
		if len(ready) == 0 {
			cycle, err := DetectCycle(g)
			if err != nil {
				return nil, err
			}
			_ = cycle
			return nil, workflow.New(workflow.KindValidationCircularDep, "no node with zero in-degree but nodes remain")
		}

		sort.Strings(ready)
		phases = append(phases, workflow.Phase{Index: phaseIndex, StepIDs: ready})
		phaseIndex++

		for _, id := range ready {
			delete(indegree, id)
			remaining--
			for _, dependent := range g.Nodes[id].Dependents {
				if _, stillPending := indegree[dependent]; stillPending {
					indegree[dependent]--
				}
			}
		}
	}

	return &workflow.ExecutionPlan{Phases: phases}, nil
}

// durationEstimate is a per-handler duration band used for the explanation
// generator's time estimation (spec 4.12). The executor never consults this;
// it exists purely for dry-run reporting.
type durationEstimate struct {
	min, avg, max time.Duration
}

var defaultEstimate = durationEstimate{min: 200 * time.Millisecond, avg: time.Second, max: 5 * time.Second}

// estimateFor returns a handler-specific duration band, falling back to a
// generic default for handlers the explain generator has no data on.
func estimateFor(uses string) durationEstimate {
	switch uses {
	case "shell.run", "command.exec":
		return durationEstimate{min: 500 * time.Millisecond, avg: 3 * time.Second, max: 30 * time.Second}
	case "http.get", "http.post":
		return durationEstimate{min: 100 * time.Millisecond, avg: 800 * time.Millisecond, max: 10 * time.Second}
	case "noop":
		return durationEstimate{min: time.Millisecond, avg: time.Millisecond, max: time.Millisecond}
	default:
		return defaultEstimate
	}
}

// TimingAnalysis is the earliest-start/latest-start/slack pass the spec
// describes as "an additional pass" over the plan. Durations come from the
// per-handler estimateFor table in this file; the executor never consults
// it (spec 4.3).
type TimingAnalysis struct {
	EarliestStart map[string]time.Duration
	LatestStart   map[string]time.Duration
	Slack         map[string]time.Duration
	CriticalPath  []string
	TotalDuration time.Duration
}

// AnalyzeTiming computes earliest/latest start times and slack for every
// step in the plan, using avg duration estimates per `uses` handler. Steps
// with zero slack form the critical path.
func AnalyzeTiming(g *Graph, plan *workflow.ExecutionPlan) TimingAnalysis {
	duration := make(map[string]time.Duration, len(g.Nodes))
	for id, node := range g.Nodes {
		duration[id] = estimateFor(node.Step.Uses).avg
	}

	earliest := make(map[string]time.Duration, len(g.Nodes))
	for _, phase := range plan.Phases {
		for _, id := range phase.StepIDs {
			start := time.Duration(0)
			for _, dep := range g.Nodes[id].DependsOn {
				finish := earliest[dep] + duration[dep]
				if finish > start {
					start = finish
				}
			}
			earliest[id] = start
		}
	}

	total := time.Duration(0)
	for id, start := range earliest {
		finish := start + duration[id]
		if finish > total {
			total = finish
		}
	}

	latest := make(map[string]time.Duration, len(g.Nodes))
	for i := len(plan.Phases) - 1; i >= 0; i-- {
		for _, id := range plan.Phases[i].StepIDs {
			end := total
			for _, dependentID := range g.Nodes[id].Dependents {
				if l, ok := latest[dependentID]; ok && l < end {
					end = l
				}
			}
			latest[id] = end - duration[id]
		}
	}

	slack := make(map[string]time.Duration, len(g.Nodes))
	var criticalPath []string
	for id := range g.Nodes {
		s := latest[id] - earliest[id]
		slack[id] = s
		if s <= 0 {
			criticalPath = append(criticalPath, id)
		}
	}
	sort.Strings(criticalPath)

	return TimingAnalysis{
		EarliestStart: earliest,
		LatestStart:   latest,
		Slack:         slack,
		CriticalPath:  criticalPath,
		TotalDuration: total,
	}
}
