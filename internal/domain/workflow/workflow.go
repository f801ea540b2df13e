package workflow

// Definition is the immutable, parsed workflow document (spec section 3,
// "WorkflowDefinition"). It is produced once by the loader/validator and
// never mutated afterward.
type Definition struct {
	SchemaVersion string
	Kind          string
	Name          string
	Description   string
	Tags          []string
	Owner         string

	Inputs   map[string]InputSpec
	Secrets  SecretsDeclaration
	Context  map[string]interface{}
	Defaults Defaults
	Policies Policies

	Steps   []Step
	Outputs map[string]string
}

// Validate enforces the document-level invariants from spec section 3:
// non-empty step list, unique step ids, and per-step shape validity. It does
// not check dependency graph structure (that is DependencyGraph's job) or
// action handler registration (the registry's job) — see internal/engine and
// internal/validator for those later phases.
func (d Definition) Validate() error {
	if len(d.Steps) == 0 {
		return New(KindValidationEmptyWorkflow, "workflow must declare at least one step")
	}

	seen := make(map[string]bool, len(d.Steps))
	for i, step := range d.Steps {
		if err := step.Validate(); err != nil {
			return err
		}
		if seen[step.ID] {
			return New(KindValidationDuplicateID, "duplicate step id").
				WithContext(map[string]interface{}{"step_id": step.ID, "index": i})
		}
		seen[step.ID] = true
	}

	for _, step := range d.Steps {
		for _, dep := range step.Needs {
			if !seen[dep] {
				return New(KindValidationUnknownStep, "needs references an undeclared step").
					WithContext(map[string]interface{}{"step_id": step.ID, "needs": dep})
			}
		}
	}

	return nil
}

// GetStep retrieves a step by id.
func (d Definition) GetStep(id string) (*Step, bool) {
	for i := range d.Steps {
		if d.Steps[i].ID == id {
			copy := d.Steps[i]
			return &copy, true
		}
	}
	return nil, false
}

// StepIndex returns the declaration-order index of a step id, or -1.
func (d Definition) StepIndex(id string) int {
	for i, step := range d.Steps {
		if step.ID == id {
			return i
		}
	}
	return -1
}

// EffectivePolicies returns the workflow's policies with defaults applied.
func (d Definition) EffectivePolicies() Policies {
	return d.Policies.ApplyDefaults()
}

// Clone returns a defensive deep-ish copy of the definition. Maps and
// slices are copied one level deep, which is sufficient since Definition is
// never mutated in place after validation.
func (d Definition) Clone() Definition {
	steps := make([]Step, len(d.Steps))
	copy(steps, d.Steps)

	inputs := make(map[string]InputSpec, len(d.Inputs))
	for k, v := range d.Inputs {
		inputs[k] = v
	}

	context := make(map[string]interface{}, len(d.Context))
	for k, v := range d.Context {
		context[k] = v
	}

	outputs := make(map[string]string, len(d.Outputs))
	for k, v := range d.Outputs {
		outputs[k] = v
	}

	tags := append([]string(nil), d.Tags...)
	secretKeys := append([]string(nil), d.Secrets.Keys...)

	return Definition{
		SchemaVersion: d.SchemaVersion,
		Kind:          d.Kind,
		Name:          d.Name,
		Description:   d.Description,
		Tags:          tags,
		Owner:         d.Owner,
		Inputs:        inputs,
		Secrets:       SecretsDeclaration{Vault: d.Secrets.Vault, Keys: secretKeys},
		Context:       context,
		Defaults:      d.Defaults,
		Policies:      d.Policies,
		Steps:         steps,
		Outputs:       outputs,
	}
}
