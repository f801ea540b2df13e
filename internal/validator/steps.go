package validator

import (
	"fmt"
	"regexp"

	"github.com/orbyt/workflow-engine/internal/domain/workflow"
	"github.com/orbyt/workflow-engine/internal/registry"
)

// stepsRefPattern finds every `steps.<id>` reference in a string value,
// whether or not it sits inside `${...}`, used by CheckForwardReferences to enforce spec 4.7.3's rule
// that a step may only reference steps declared earlier.
var stepsRefPattern = regexp.MustCompile(`steps\.([A-Za-z_][A-Za-z0-9_-]*)`)

// CheckUsesRegistered is part of phase 3 (spec 4.7.3): every step's `uses`
// must resolve to a registered action handler.
func CheckUsesRegistered(def workflow.Definition, reg *registry.Registry) error {
	for _, step := range def.Steps {
		if !reg.Has(step.Uses) {
			return workflow.New(workflow.KindValidationUnknownAdapter, fmt.Sprintf("no action handler registered for %q", step.Uses)).
				WithPath(fmt.Sprintf("workflow.steps[%s].uses", step.ID)).
				WithContext(map[string]interface{}{"step_id": step.ID, "uses": step.Uses})
		}
	}
	return nil
}

// CheckForwardReferences walks every step's with/env/when/outputs values for
// `steps.X` references (with or without `${...}` around them) and rejects any X that isn't declared strictly
// before the referencing step (spec 4.2's static validation pass and 4.7.3's
// VALIDATION_FORWARD_REFERENCE).
func CheckForwardReferences(def workflow.Definition) error {
	declaredBefore := make(map[string]bool, len(def.Steps))

	for _, step := range def.Steps {
		for _, ref := range collectStepRefs(step) {
			if !declaredBefore[ref] {
				return workflow.New(workflow.KindValidationForwardReference,
					fmt.Sprintf("step %q references steps.%s, which is not declared before it", step.ID, ref)).
					WithPath(fmt.Sprintf("workflow.steps[%s]", step.ID)).
					WithContext(map[string]interface{}{"step_id": step.ID, "referenced": ref})
			}
		}
		declaredBefore[step.ID] = true
	}
	return nil
}

func collectStepRefs(step workflow.Step) []string {
	var refs []string
	walkValue(step.With, &refs)
	walkValue(step.When, &refs)
	for _, v := range step.Env {
		walkValue(v, &refs)
	}
	for _, m := range step.Outputs {
		walkValue(m.Path, &refs)
	}
	return refs
}

func walkValue(v interface{}, refs *[]string) {
	switch val := v.(type) {
	case string:
		for _, m := range stepsRefPattern.FindAllStringSubmatch(val, -1) {
			*refs = append(*refs, m[1])
		}
	case map[string]interface{}:
		for _, item := range val {
			walkValue(item, refs)
		}
	case []interface{}:
		for _, item := range val {
			walkValue(item, refs)
		}
	}
}
