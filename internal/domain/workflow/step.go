package workflow

import (
	"regexp"
	"time"
)

var stepIDPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)
var durationPattern = regexp.MustCompile(`^[0-9]+(ms|s|m|h)$`)

// BackoffStrategy enumerates supported retry backoff curves.
type BackoffStrategy string

const (
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

// RetryPolicy configures a step's retry loop.
type RetryPolicy struct {
	Max     int
	Backoff BackoffStrategy
	Delay   time.Duration
}

// EffectiveMax returns the configured maximum attempts, floored to 1.
func (r RetryPolicy) EffectiveMax() int {
	if r.Max < 1 {
		return 1
	}
	return r.Max
}

// OutputMapping aliases a dotted path into a step's raw action result.
type OutputMapping struct {
	Alias string
	Path  string
}

// Step is a single unit of work within a workflow.
type Step struct {
	ID              string
	Name            string
	Uses            string
	With            map[string]interface{}
	Needs           []string
	When            string
	Timeout         time.Duration
	Retry           *RetryPolicy
	ContinueOnError bool
	Outputs         []OutputMapping
	Env             map[string]string
}

// Validate enforces the per-step invariants from spec section 3.
func (s Step) Validate() error {
	if s.ID == "" {
		return New(KindSchemaMissingField, "step id is required")
	}
	if !stepIDPattern.MatchString(s.ID) {
		return New(KindSchemaInvalidID, "step id must match ^[a-zA-Z_][a-zA-Z0-9_-]*$").
			WithContext(map[string]interface{}{"step_id": s.ID})
	}
	if s.Uses == "" {
		return New(KindSchemaMissingField, "step uses is required").
			WithContext(map[string]interface{}{"step_id": s.ID})
	}
	if s.Retry != nil && s.Retry.Max < 0 {
		return New(KindSchemaInvalidType, "retry.max must be non-negative").
			WithContext(map[string]interface{}{"step_id": s.ID})
	}
	return nil
}

// HasDependency reports whether the step declares id as a dependency.
func (s Step) HasDependency(id string) bool {
	for _, dep := range s.Needs {
		if dep == id {
			return true
		}
	}
	return false
}

// ValidateDurationString checks the `<int>{ms|s|m|h}` pattern required by
// spec section 6 for raw duration strings before they are parsed.
func ValidateDurationString(s string) bool {
	return durationPattern.MatchString(s)
}
