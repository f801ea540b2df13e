package registry

import "context"

// Capabilities declares what the executor may assume about a handler's
// concurrency and caching behavior (spec 4.6).
type Capabilities struct {
	Concurrent bool
	Cacheable  bool
	Idempotent bool
	Resources  []string
	Cost       int
}

// ActionContext is the read-only bundle a handler receives alongside the
// resolved input (spec 4.6).
type ActionContext struct {
	WorkflowName    string
	StepID          string
	ExecutionID     string
	Log             func(msg string, level string)
	Secrets         map[string]interface{}
	TempDir         string
	CancelToken     context.Context
	TimeoutMs       int64
	Cwd             string
	Env             map[string]string
	StepOutputs     map[string]interface{}
	Inputs          map[string]interface{}
	WorkflowContext map[string]interface{}
}

// ActionError is the structured error a handler reports on failure.
type ActionError struct {
	Message string
	Code    string
	Stack   string
}

func (e *ActionError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Metrics carries handler-reported execution metrics.
type Metrics struct {
	DurationMs int64
}

// Result is what a handler returns from Execute (spec 4.6).
type Result struct {
	Success bool
	Output  interface{}
	Error   *ActionError
	Metrics *Metrics
	Logs    []string
	Effects []string
}

// ActionHandler is the contract every action provider implements. Providers
// themselves are out of scope (spec section 1); the core only depends on
// this interface and the reference handlers in internal/actions.
type ActionHandler interface {
	Name() string
	Version() string
	SupportedActions() []string
	Capabilities() Capabilities
	Execute(ctx context.Context, action string, input map[string]interface{}, actionCtx ActionContext) (Result, error)
}
