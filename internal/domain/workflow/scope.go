package workflow

import (
	"fmt"
	"sort"
	"strings"
)

// reservedNamespaces are declared by the grammar but not backed by any
// field on Scope. A lookup into one of these fails with
// KindValidationReservedNamespace rather than a plain "not found", so
// callers can tell "doesn't exist yet" from "never will".
var reservedNamespaces = map[string]bool{
	"telemetry":  true,
	"resources":  true,
	"compliance": true,
}

// WorkflowInfo is the `workflow` namespace: static metadata about the
// running definition.
type WorkflowInfo struct {
	ID          string
	Name        string
	Version     string
	Description string
	Tags        []string
	Owner       string
}

// RunInfo is the `run` namespace: metadata about this particular execution.
type RunInfo struct {
	ID          string
	Timestamp   string
	Attempt     int
	TriggeredBy string
}

// Scope is the ResolutionScope passed to the variable resolver. It is an
// explicit record of typed namespace fields rather than a generic
// map-of-maps, so that merging user-supplied context can never clobber an
// engine-owned namespace (spec's prototype-pollution note in REDESIGN
// FLAGS).
type Scope struct {
	Env      map[string]string
	Steps    map[string]interface{}
	Workflow WorkflowInfo
	Run      RunInfo
	Inputs   map[string]interface{}
	Secrets  map[string]interface{}
	Metadata map[string]interface{}
	Context  map[string]interface{}
}

// NewScope returns a Scope with every namespace map initialized empty.
func NewScope() Scope {
	return Scope{
		Env:      map[string]string{},
		Steps:    map[string]interface{}{},
		Inputs:   map[string]interface{}{},
		Secrets:  map[string]interface{}{},
		Metadata: map[string]interface{}{},
		Context:  map[string]interface{}{},
	}
}

// MergeContext copies entries from untrusted into the scope's context
// namespace key by key, refusing any key in the reserved set. This is the
// only way user-supplied context reaches the scope; there is no value-level
// deep merge of engine fields.
func (s *Scope) MergeContext(untrusted map[string]interface{}) error {
	for k, v := range untrusted {
		if reservedNamespaces[k] {
			return New(KindRuntimePermissionDenied, "context key collides with a reserved namespace").
				WithContext(map[string]interface{}{"key": k})
		}
		if strings.HasPrefix(k, "_") {
			continue
		}
		s.Context[k] = v
	}
	return nil
}

// RecordStepOutput stores a completed step's raw result under the `steps`
// namespace. Per the ordering guarantees (spec section 4.9), this is only
// safe to call after the step has reached a terminal state, and the write is
// observable to later phases, not to peers within the same phase.
func (s *Scope) RecordStepOutput(stepID string, output interface{}) {
	s.Steps[stepID] = output
}

// Resolve performs a single namespace.key(.key)* lookup against the scope,
// returning the error kinds the grammar promises: KindValidationReservedNamespace
// for telemetry/resources/compliance, and a not-found error (wrapped by the
// caller) for everything else that comes up empty.
func (s Scope) Resolve(namespace string, path []string) (Value, error) {
	if reservedNamespaces[namespace] {
		return Value{}, New(KindValidationReservedNamespace, "namespace is reserved and not yet implemented").
			WithContext(map[string]interface{}{"namespace": namespace})
	}

	switch namespace {
	case "env":
		if len(path) != 1 {
			return Value{}, notFound(namespace, path)
		}
		v, ok := s.Env[path[0]]
		if !ok {
			return Value{}, notFound(namespace, path)
		}
		return NewValue(v), nil

	case "steps":
		if len(path) == 0 {
			return Value{}, notFound(namespace, path)
		}
		stepID := path[0]
		raw, ok := s.Steps[stepID]
		if !ok {
			return Value{}, New(KindExecutionUnresolvedReference, fmt.Sprintf("unknown step %q referenced; available: %s", stepID, availableKeys(s.Steps))).
				WithContext(map[string]interface{}{"step_id": stepID})
		}
		val, ok := NewValue(raw).Get(path[1:])
		if !ok {
			return Value{}, notFound(namespace, path)
		}
		return val, nil

	case "workflow":
		return resolveStruct(namespace, path, map[string]interface{}{
			"id":          s.Workflow.ID,
			"name":        s.Workflow.Name,
			"version":     s.Workflow.Version,
			"description": s.Workflow.Description,
			"tags":        s.Workflow.Tags,
			"owner":       s.Workflow.Owner,
		})

	case "run":
		return resolveStruct(namespace, path, map[string]interface{}{
			"id":          s.Run.ID,
			"timestamp":   s.Run.Timestamp,
			"attempt":     s.Run.Attempt,
			"triggeredBy": s.Run.TriggeredBy,
		})

	case "inputs":
		return resolveMap(namespace, path, s.Inputs)
	case "secrets":
		return resolveMap(namespace, path, s.Secrets)
	case "metadata":
		return resolveMap(namespace, path, s.Metadata)
	case "context":
		return resolveMap(namespace, path, s.Context)
	}

	return Value{}, New(KindValidationReservedNamespace, "unknown namespace").
		WithContext(map[string]interface{}{"namespace": namespace})
}

func resolveMap(namespace string, path []string, m map[string]interface{}) (Value, error) {
	val, ok := NewValue(map[string]interface{}(m)).Get(path)
	if !ok {
		return Value{}, notFound(namespace, path)
	}
	return val, nil
}

func resolveStruct(namespace string, path []string, fields map[string]interface{}) (Value, error) {
	val, ok := NewValue(fields).Get(path)
	if !ok {
		return Value{}, notFound(namespace, path)
	}
	return val, nil
}

func notFound(namespace string, path []string) *Error {
	return New(KindExecutionUnresolvedReference, fmt.Sprintf("unresolved reference %s.%s", namespace, strings.Join(path, "."))).
		WithContext(map[string]interface{}{"namespace": namespace, "path": path})
}

func availableKeys(m map[string]interface{}) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
