package loader

// Document is the plain-object shape the core accepts (spec section 6): a
// workflow object as produced by whatever syntax layer a caller uses (YAML,
// JSON, a hand-built map) before it ever reaches the validator. Field tags
// double as both the decode target and the `go-playground/validator`
// struct tags the shape phase runs against, mirroring the teacher's
// Config/Step pattern in internal/config/types.go.
type Document struct {
	Version  string                 `yaml:"version" validate:"required"`
	Kind     string                 `yaml:"kind" validate:"required"`
	Workflow WorkflowBlock          `yaml:"workflow" validate:"required"`
	Metadata MetadataBlock          `yaml:"metadata"`
	Annotations map[string]string   `yaml:"annotations"`
	Inputs   map[string]InputDTO    `yaml:"inputs"`
	Secrets  SecretsDTO             `yaml:"secrets"`
	Context  map[string]interface{} `yaml:"context"`
	Defaults DefaultsDTO            `yaml:"defaults"`
	Policies PoliciesDTO            `yaml:"policies"`
	Outputs  map[string]string      `yaml:"outputs"`
}

// WorkflowBlock holds the one field the shape phase requires directly under
// `workflow`: its ordered step list.
type WorkflowBlock struct {
	Steps []StepDTO `yaml:"steps" validate:"required,min=1,dive"`
}

// MetadataBlock carries the descriptive fields the spec lists under
// `metadata` rather than under `workflow` itself.
type MetadataBlock struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
	Owner       string   `yaml:"owner"`
	Version     string   `yaml:"version"`
	CreatedAt   string   `yaml:"createdAt"`
	UpdatedAt   string   `yaml:"updatedAt"`
}

// InputDTO is one entry of the `inputs` mapping, as written in the document.
type InputDTO struct {
	Type        string      `yaml:"type" validate:"omitempty,oneof=string number bool object array"`
	Required    bool        `yaml:"required"`
	Default     interface{} `yaml:"default"`
	Description string      `yaml:"description"`
}

// SecretsDTO is the `secrets` block: a vault name and the key names a
// workflow expects to find in it. No values ever appear here.
type SecretsDTO struct {
	Vault string   `yaml:"vault"`
	Keys  []string `yaml:"keys"`
}

// DefaultsDTO is the workflow-level `defaults` block.
type DefaultsDTO struct {
	Timeout string `yaml:"timeout" validate:"omitempty,duration"`
	Adapter string `yaml:"adapter"`
}

// PoliciesDTO is the workflow-level `policies` block.
type PoliciesDTO struct {
	Failure     string `yaml:"failure" validate:"omitempty,oneof=stop continue isolate"`
	Concurrency int    `yaml:"concurrency"`
	Sandbox     string `yaml:"sandbox" validate:"omitempty,oneof=none basic strict"`
}

// RetryDTO is a step's `retry` block.
type RetryDTO struct {
	Max     int    `yaml:"max" validate:"omitempty,min=0"`
	Backoff string `yaml:"backoff" validate:"omitempty,oneof=linear exponential"`
	Delay   string `yaml:"delay" validate:"omitempty,duration"`
}

// StepDTO is one entry of `workflow.steps`.
type StepDTO struct {
	ID              string            `yaml:"id" validate:"required,stepid"`
	Name            string            `yaml:"name"`
	Uses            string            `yaml:"uses" validate:"required"`
	With            map[string]interface{} `yaml:"with"`
	When            string            `yaml:"when"`
	Needs           []string          `yaml:"needs"`
	Timeout         string            `yaml:"timeout" validate:"omitempty,duration"`
	Retry           *RetryDTO         `yaml:"retry"`
	ContinueOnError bool              `yaml:"continueOnError"`
	Outputs         map[string]string `yaml:"outputs"`
	Env             map[string]string `yaml:"env"`
}
