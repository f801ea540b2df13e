// Package explain implements the explanation generator (C14, spec 4.12): a
// pure, read-only dry-run analysis over a validated plan, consumed by the
// CLI's explain subcommand. It never executes a step and never mutates the
// plan it is given.
package explain

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/orbyt/workflow-engine/internal/domain/workflow"
	"github.com/orbyt/workflow-engine/internal/engine"
	"github.com/orbyt/workflow-engine/internal/validator"
)

var (
	inputRefPattern  = regexp.MustCompile(`inputs\.([A-Za-z_][A-Za-z0-9_.-]*)`)
	secretRefPattern = regexp.MustCompile(`secrets\.([A-Za-z_][A-Za-z0-9_.-]*)`)
)

// Summary is the top-level overview (spec 4.12's first bullet).
type Summary struct {
	Name        string
	Description string
	Version     string
	StepCount   int
	Adapters    []string
	Policies    workflow.Policies
}

// StepBreakdown is the per-step analysis (spec 4.12's second and third
// bullets): what a step declares and where its data comes from.
type StepBreakdown struct {
	ID               string
	Uses             string
	Needs            []string
	When             string
	EffectiveTimeout time.Duration
	EffectiveRetry   *workflow.RetryPolicy
	InputsReferenced []string
	SecretsUsed      []string
	DataSources      []DataSource
	Consumers        []string
}

// DataSource describes where one of a step's inputs comes from, per spec
// 4.12's data-flow prediction bullet.
type DataSource struct {
	Kind   string // workflow.inputs | step.output | context | secrets | env | static
	Detail string
	FromStep string
}

// ConditionalPaths enumerates the all-true and all-false execution paths
// required by spec 4.12's conditional-path analysis.
type ConditionalPaths struct {
	AllTrueExecuted    []string
	AllTrueSkipped     []string
	AllFalseExecuted   []string
	AllFalseSkipped    []string
}

// TimeEstimate is the critical-path duration rollup with bottleneck flags
// (spec 4.12's time-estimation bullet: avg > 1.5x mean is a bottleneck).
type TimeEstimate struct {
	CriticalPath    []string
	TotalEstimated  time.Duration
	Bottlenecks     []string
}

// Explanation is the full dry-run report returned by the façade's Explain
// entry point (spec 4.11, 4.13).
type Explanation struct {
	Summary      Summary
	Phases       []workflow.Phase
	Steps        []StepBreakdown
	Conditionals ConditionalPaths
	Time         TimeEstimate
	Cycles       [][]string
}

// Generate builds an Explanation from a validated plan. It never returns an
// error: cycles and ambiguities are reported inside the Explanation rather
// than failing the call, per spec 4.12's closing note.
func Generate(plan *validator.ValidatedPlan) Explanation {
	def := plan.Workflow

	exp := Explanation{
		Summary:      buildSummary(def),
		Phases:       plan.Plan.Phases,
		Steps:        buildStepBreakdowns(def, plan.Plan),
		Conditionals: buildConditionalPaths(def),
		Time:         buildTimeEstimate(plan.Graph, plan.Plan),
		Cycles:       findCycles(plan.Graph),
	}
	return exp
}

func buildSummary(def workflow.Definition) Summary {
	adapterSet := make(map[string]bool, len(def.Steps))
	for _, step := range def.Steps {
		adapterSet[step.Uses] = true
	}
	adapters := make([]string, 0, len(adapterSet))
	for uses := range adapterSet {
		adapters = append(adapters, uses)
	}
	sort.Strings(adapters)

	return Summary{
		Name:        def.Name,
		Description: def.Description,
		Version:     def.SchemaVersion,
		StepCount:   len(def.Steps),
		Adapters:    adapters,
		Policies:    def.EffectivePolicies(),
	}
}

func buildStepBreakdowns(def workflow.Definition, plan *workflow.ExecutionPlan) []StepBreakdown {
	policies := def.EffectivePolicies()
	breakdowns := make([]StepBreakdown, 0, len(def.Steps))

	for _, step := range def.Steps {
		timeout := step.Timeout
		if timeout == 0 {
			timeout = def.Defaults.Timeout
		}

		retry := step.Retry
		if retry == nil && policies.Failure == workflow.FailureContinue {
			retry = &workflow.RetryPolicy{Max: 1, Backoff: workflow.BackoffLinear}
		}

		breakdowns = append(breakdowns, StepBreakdown{
			ID:               step.ID,
			Uses:             step.Uses,
			Needs:            append([]string(nil), step.Needs...),
			When:             step.When,
			EffectiveTimeout: timeout,
			EffectiveRetry:   retry,
			InputsReferenced: collectRefs(step, inputRefPattern),
			SecretsUsed:      collectRefs(step, secretRefPattern),
			DataSources:      dataSourcesFor(step),
			Consumers:        consumersOf(step.ID, def.Steps),
		})
	}
	return breakdowns
}

func collectRefs(step workflow.Step, pattern *regexp.Regexp) []string {
	seen := make(map[string]bool)
	var out []string
	walk := func(v interface{}) {
		walkForRefs(v, pattern, seen, &out)
	}
	walk(step.With)
	walk(step.When)
	for _, v := range step.Env {
		walk(v)
	}
	sort.Strings(out)
	return out
}

func walkForRefs(v interface{}, pattern *regexp.Regexp, seen map[string]bool, out *[]string) {
	switch val := v.(type) {
	case string:
		for _, m := range pattern.FindAllStringSubmatch(val, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				*out = append(*out, m[1])
			}
		}
	case map[string]interface{}:
		for _, item := range val {
			walkForRefs(item, pattern, seen, out)
		}
	case []interface{}:
		for _, item := range val {
			walkForRefs(item, pattern, seen, out)
		}
	}
}

// dataSourcesFor classifies where a step's `with` values originate, per the
// data-flow prediction bullet. A value that is a bare string literal with no
// `${...}` is "static"; otherwise it's classified by its leading namespace.
func dataSourcesFor(step workflow.Step) []DataSource {
	var sources []DataSource
	for key, v := range step.With {
		str, ok := v.(string)
		if !ok {
			sources = append(sources, DataSource{Kind: "static", Detail: key})
			continue
		}
		switch {
		case inputRefPattern.MatchString(str):
			sources = append(sources, DataSource{Kind: "workflow.inputs", Detail: key})
		case secretRefPattern.MatchString(str):
			sources = append(sources, DataSource{Kind: "secrets", Detail: key})
		case stepsRefPattern.MatchString(str):
			match := stepsRefPattern.FindStringSubmatch(str)
			sources = append(sources, DataSource{Kind: "step.output", Detail: key, FromStep: match[1]})
		case contextRefPattern.MatchString(str):
			sources = append(sources, DataSource{Kind: "context", Detail: key})
		case envRefPattern.MatchString(str):
			sources = append(sources, DataSource{Kind: "env", Detail: key})
		default:
			sources = append(sources, DataSource{Kind: "static", Detail: key})
		}
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Detail < sources[j].Detail })
	return sources
}

var (
	stepsRefPattern   = regexp.MustCompile(`steps\.([A-Za-z_][A-Za-z0-9_-]*)`)
	contextRefPattern = regexp.MustCompile(`context\.`)
	envRefPattern     = regexp.MustCompile(`env\.`)
)

// consumersOf finds every later step whose with/env substring-references
// stepID's output, per spec 4.12's "set of consuming steps" requirement.
func consumersOf(stepID string, steps []workflow.Step) []string {
	needle := fmt.Sprintf("steps.%s", stepID)
	var consumers []string
	for _, step := range steps {
		if step.ID == stepID {
			continue
		}
		if referencesSubstring(step.With, needle) || referencesSubstring(step.When, needle) {
			consumers = append(consumers, step.ID)
			continue
		}
		for _, v := range step.Env {
			if referencesSubstring(v, needle) {
				consumers = append(consumers, step.ID)
				break
			}
		}
	}
	sort.Strings(consumers)
	return consumers
}

func referencesSubstring(v interface{}, needle string) bool {
	switch val := v.(type) {
	case string:
		return containsSubstring(val, needle)
	case map[string]interface{}:
		for _, item := range val {
			if referencesSubstring(item, needle) {
				return true
			}
		}
	case []interface{}:
		for _, item := range val {
			if referencesSubstring(item, needle) {
				return true
			}
		}
	}
	return false
}

func containsSubstring(haystack, needle string) bool {
	return len(needle) > 0 && len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

// buildConditionalPaths enumerates the all-true and all-false executions
// required by spec 4.12. A step is "executed" in the all-true path if every
// step it transitively needs is also executed; `when` itself is assumed true
// (all-true) or false (all-false) for every step that declares one.
func buildConditionalPaths(def workflow.Definition) ConditionalPaths {
	allTrueExec, allTrueSkip := simulatePath(def, true)
	allFalseExec, allFalseSkip := simulatePath(def, false)
	return ConditionalPaths{
		AllTrueExecuted:  allTrueExec,
		AllTrueSkipped:   allTrueSkip,
		AllFalseExecuted: allFalseExec,
		AllFalseSkipped:  allFalseSkip,
	}
}

func simulatePath(def workflow.Definition, conditionsTrue bool) ([]string, []string) {
	executed := make(map[string]bool, len(def.Steps))
	var execList, skipList []string

	for changed := true; changed; {
		changed = false
		for _, step := range def.Steps {
			if executed[step.ID] || (step.When != "" && !conditionsTrue) {
				continue
			}
			runnable := true
			for _, dep := range step.Needs {
				if !executed[dep] {
					runnable = false
					break
				}
			}
			if runnable {
				executed[step.ID] = true
				changed = true
			}
		}
	}

	for _, step := range def.Steps {
		if executed[step.ID] {
			execList = append(execList, step.ID)
		} else {
			skipList = append(skipList, step.ID)
		}
	}
	return execList, skipList
}

func buildTimeEstimate(g *engine.Graph, plan *workflow.ExecutionPlan) TimeEstimate {
	timing := engine.AnalyzeTiming(g, plan)

	var total time.Duration
	durations := make(map[string]time.Duration, len(g.Nodes))
	for id, node := range g.Nodes {
		d := estimateAvg(node.Step.Uses)
		durations[id] = d
		total += d
	}

	mean := time.Duration(0)
	if len(durations) > 0 {
		var sum time.Duration
		for _, d := range durations {
			sum += d
		}
		mean = sum / time.Duration(len(durations))
	}

	var bottlenecks []string
	for _, id := range timing.CriticalPath {
		if float64(durations[id]) > 1.5*float64(mean) {
			bottlenecks = append(bottlenecks, id)
		}
	}
	sort.Strings(bottlenecks)

	return TimeEstimate{
		CriticalPath:   timing.CriticalPath,
		TotalEstimated: timing.TotalDuration,
		Bottlenecks:    bottlenecks,
	}
}

// estimateAvg is this package's own average-duration table, keyed by the
// reference handlers' action names. It is separate from the engine
// planner's estimateFor table, whose keys and durations differ.
func estimateAvg(uses string) time.Duration {
	switch uses {
	case "shell.exec", "shell.script":
		return 3 * time.Second
	case "core.noop":
		return time.Millisecond
	default:
		return time.Second
	}
}

func findCycles(g *engine.Graph) [][]string {
	return engine.FindStronglyConnectedComponents(g)
}
