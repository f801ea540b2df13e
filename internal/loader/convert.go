package loader

import (
	"time"

	"github.com/orbyt/workflow-engine/internal/domain/workflow"
)

// ToDefinition converts a decoded Document into the typed, immutable
// Definition the rest of the engine operates on. It assumes the document has
// already passed the shape phase (spec 4.7.2) — duration and enum strings
// are known-valid here, so they are not re-validated: a duration that fails
// to parse becomes zero and no error is returned.
func ToDefinition(doc Document) workflow.Definition {
	def := workflow.Definition{
		SchemaVersion: doc.Version,
		Kind:          doc.Kind,
		Name:          doc.Metadata.Name,
		Description:   doc.Metadata.Description,
		Tags:          append([]string(nil), doc.Metadata.Tags...),
		Owner:         doc.Metadata.Owner,
		Context:       doc.Context,
		Secrets:       workflow.SecretsDeclaration{Vault: doc.Secrets.Vault, Keys: doc.Secrets.Keys},
		Defaults: workflow.Defaults{
			Timeout: parseDuration(doc.Defaults.Timeout),
			Adapter: doc.Defaults.Adapter,
		},
		Policies: workflow.Policies{
			Failure:     workflow.FailurePolicy(doc.Policies.Failure),
			Concurrency: doc.Policies.Concurrency,
			Sandbox:     workflow.Sandbox(doc.Policies.Sandbox),
		},
		Outputs: doc.Outputs,
	}

	if def.SchemaVersion == "" {
		def.SchemaVersion = doc.Version
	}
	if doc.Metadata.Version != "" {
		def.SchemaVersion = doc.Metadata.Version
	}

	if len(doc.Inputs) > 0 {
		def.Inputs = make(map[string]workflow.InputSpec, len(doc.Inputs))
		for name, in := range doc.Inputs {
			def.Inputs[name] = workflow.InputSpec{
				Type:        in.Type,
				Required:    in.Required,
				Default:     in.Default,
				Description: in.Description,
			}
		}
	}

	def.Steps = make([]workflow.Step, len(doc.Workflow.Steps))
	for i, s := range doc.Workflow.Steps {
		def.Steps[i] = toStep(s)
	}

	return def
}

func toStep(s StepDTO) workflow.Step {
	step := workflow.Step{
		ID:              s.ID,
		Name:            s.Name,
		Uses:            s.Uses,
		With:            s.With,
		Needs:           s.Needs,
		When:            s.When,
		Timeout:         parseDuration(s.Timeout),
		ContinueOnError: s.ContinueOnError,
		Env:             s.Env,
	}

	if s.Retry != nil {
		step.Retry = &workflow.RetryPolicy{
			Max:     s.Retry.Max,
			Backoff: workflow.BackoffStrategy(s.Retry.Backoff),
			Delay:   parseDuration(s.Retry.Delay),
		}
	}

	if len(s.Outputs) > 0 {
		step.Outputs = make([]workflow.OutputMapping, 0, len(s.Outputs))
		for alias, path := range s.Outputs {
			step.Outputs = append(step.Outputs, workflow.OutputMapping{Alias: alias, Path: path})
		}
	}

	return step
}

// parseDuration parses a `<int>{ms|s|m|h}` string already validated by the
// shape phase. An empty or malformed string yields zero, leaving callers to
// fall back to their own default.
func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
