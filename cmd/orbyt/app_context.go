package main

import (
	"github.com/orbyt/workflow-engine/internal/actions"
	"github.com/orbyt/workflow-engine/internal/facade"
	"github.com/orbyt/workflow-engine/internal/logger"
	"github.com/orbyt/workflow-engine/internal/registry"
)

// AppContext bundles the shared services every subcommand needs, the way
// the teacher's own AppContext (cmd/streamy/app_context.go) threads a
// logger and use cases through the command tree.
type AppContext struct {
	Logger  *logger.Logger
	Facade  *facade.Facade
}

// Bootstrap builds the action registry and façade the CLI runs against.
// Only the two reference handlers are registered; a real deployment would
// register its own action providers here.
func (a *AppContext) Bootstrap() error {
	reg := registry.NewRegistry()
	if err := reg.Register(actions.NoopHandler{}); err != nil {
		return err
	}
	if err := reg.Register(actions.ShellHandler{}); err != nil {
		return err
	}
	a.Facade = facade.New(reg, a.Logger)
	return nil
}
