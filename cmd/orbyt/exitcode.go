package main

import "github.com/orbyt/workflow-engine/internal/domain/workflow"

// exitCodeFor maps a returned error onto the process exit code table from
// spec section 6: every structured error already carries its own exit code
// (see the codeCatalog in internal/domain/workflow/errors.go); anything that
// isn't a *workflow.Error is an internal error (code 4).
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if werr, ok := err.(*workflow.Error); ok {
		return werr.ExitCode
	}
	return 4
}
