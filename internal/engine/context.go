package engine

import (
	"context"
	"time"

	"github.com/orbyt/workflow-engine/internal/domain/workflow"
)

// ExecutionOptions configures a single workflow run (spec 4.9): caller
// context merged into the scope, and the options that tune failure handling.
type ExecutionOptions struct {
	Timeout         time.Duration
	Env             map[string]string
	Inputs          map[string]interface{}
	Secrets         map[string]interface{}
	Context         map[string]interface{}
	ContinueOnError bool
	TriggeredBy     string

	// InternalContext is populated only by the façade (spec 4.11): the
	// {identity, ownership, billing, usage, audit} bundle recorded under the
	// scope's metadata namespace, which neither a workflow's own context
	// block nor a caller's options.Context can reach.
	InternalContext map[string]interface{}
}

// RunContext carries the cancellation token and shared state threaded through
// one workflow run: the single root cancel token the spec's concurrency
// model requires (workflow timeout, external cancel, and fatal step failure
// all trigger the same token).
type RunContext struct {
	ExecutionID string
	Ctx         context.Context
	Cancel      context.CancelFunc
	Scope       *workflow.Scope
	Bus         *EventBus
}

// NewRunContext builds a RunContext with a cancel scope derived from parent,
// applying the workflow-level timeout when one is configured.
func NewRunContext(parent context.Context, executionID string, timeout time.Duration, scope *workflow.Scope, bus *EventBus) *RunContext {
	ctx := parent
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	return &RunContext{ExecutionID: executionID, Ctx: ctx, Cancel: cancel, Scope: scope, Bus: bus}
}
