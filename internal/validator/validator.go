// Package validator implements the workflow validator (C9, spec 4.7): four
// ordered phases — security, shape, steps, graph — that turn an untrusted
// document into an immutable ValidatedPlan. Per the grounding ledger's Open
// Question decision, the security and shape phases stop at their first
// violation (later phases depend on the document shape being sound). The
// steps phase runs all three of its checks and combines what they report via
// hashicorp/go-multierror, but each check reports only its own first
// violation; the graph phase stops at its first error.
package validator

import (
	"github.com/hashicorp/go-multierror"

	"github.com/orbyt/workflow-engine/internal/domain/workflow"
	"github.com/orbyt/workflow-engine/internal/loader"
	"github.com/orbyt/workflow-engine/internal/registry"
)

// Validate runs all four phases against raw/doc and, on success, returns the
// ValidatedPlan the rest of the engine consumes. raw is the untyped decode
// used by the security phase; doc is the typed decode used by every later
// phase (see loader.Parse for why both are needed).
func Validate(raw map[string]interface{}, doc loader.Document, reg *registry.Registry) (*ValidatedPlan, error) {
	if err := CheckSecurity(raw); err != nil {
		return nil, err
	}

	if err := CheckShape(doc); err != nil {
		return nil, err
	}

	def := loader.ToDefinition(doc)

	if errs := checkSteps(def, reg); errs != nil {
		return nil, errs
	}

	graph, plan, err := CheckGraph(def)
	if err != nil {
		return nil, err
	}

	stepByID := make(map[string]workflow.Step, len(def.Steps))
	for _, step := range def.Steps {
		stepByID[step.ID] = step
	}

	return &ValidatedPlan{
		Workflow: def,
		Graph:    graph,
		Plan:     plan,
		StepByID: stepByID,
	}, nil
}

// checkSteps runs phase 3 (spec 4.7.3): the definition-level checks, the
// registry lookup, and the forward-reference walk all run, and each
// contributes at most its first violation. A single violation is returned
// as is; two or more are folded into one VALIDATION_UNKNOWN_STEP error.
func checkSteps(def workflow.Definition, reg *registry.Registry) error {
	var result *multierror.Error

	if err := def.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := CheckUsesRegistered(def, reg); err != nil {
		result = multierror.Append(result, err)
	}
	if err := CheckForwardReferences(def); err != nil {
		result = multierror.Append(result, err)
	}

	if result == nil {
		return nil
	}
	if err := result.ErrorOrNil(); err != nil {
		if len(result.Errors) == 1 {
			return result.Errors[0]
		}
		return workflow.New(workflow.KindValidationUnknownStep, err.Error()).
			WithContext(map[string]interface{}{"violations": len(result.Errors)})
	}
	return nil
}
