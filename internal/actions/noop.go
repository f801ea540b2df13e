// Package actions holds the core's two reference action handlers
// (core.noop, shell.exec/shell.script). Every other action provider is out
// of scope (spec section 1's Non-goals); these exist so the registry, the
// resolver, and the executor have something real to exercise without a
// third-party provider plugged in.
package actions

import (
	"context"

	"github.com/orbyt/workflow-engine/internal/registry"
)

// NoopHandler implements `core.noop`: it echoes its input back as output and
// never fails, used for smoke-testing a plan's wiring without side effects.
type NoopHandler struct{}

var _ registry.ActionHandler = NoopHandler{}

func (NoopHandler) Name() string    { return "core" }
func (NoopHandler) Version() string { return "1.0.0" }

func (NoopHandler) SupportedActions() []string {
	return []string{"core.noop"}
}

func (NoopHandler) Capabilities() registry.Capabilities {
	return registry.Capabilities{Concurrent: true, Cacheable: true, Idempotent: true, Cost: 0}
}

func (NoopHandler) Execute(ctx context.Context, action string, input map[string]interface{}, actionCtx registry.ActionContext) (registry.Result, error) {
	return registry.Result{Success: true, Output: input}, nil
}
