package workflow

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Category groups error codes by the layer that raised them.
type Category string

const (
	CategorySchema     Category = "schema"
	CategoryValidation Category = "validation"
	CategoryExecution  Category = "execution"
	CategoryRuntime    Category = "runtime"
)

// Severity drives how the executor reacts to an error.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityFatal    Severity = "FATAL"
	SeverityError    Severity = "ERROR"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityWarning  Severity = "WARNING"
	SeverityInfo     Severity = "INFO"
)

// Control is the execution-control decision derived from a Severity.
type Control string

const (
	ControlStopWorkflow Control = "STOP_WORKFLOW"
	ControlStopStep     Control = "STOP_STEP"
	ControlContinue     Control = "CONTINUE"
)

// ControlFor is a pure function mapping severity to execution control.
func ControlFor(s Severity) Control {
	switch s {
	case SeverityCritical, SeverityFatal, SeverityError:
		return ControlStopWorkflow
	case SeverityMedium:
		return ControlStopStep
	default:
		return ControlContinue
	}
}

// Kind enumerates the stable symbolic names referenced throughout the spec
// (e.g. VALIDATION_UNKNOWN_ADAPTER). Code carries the short ORB-<cat>-<n>
// form; Kind carries the descriptive name used in error messages and by
// isRetryable.
type Kind string

const (
	KindSchemaMissingField   Kind = "SCHEMA_MISSING_FIELD"
	KindSchemaInvalidEnum    Kind = "SCHEMA_INVALID_ENUM"
	KindSchemaInvalidType    Kind = "SCHEMA_INVALID_TYPE"
	KindSchemaInvalidID      Kind = "SCHEMA_INVALID_ID"
	KindSchemaInvalidDefault Kind = "SCHEMA_INVALID_DURATION"
	KindSchemaParseError     Kind = "SCHEMA_PARSE_ERROR"

	KindValidationDuplicateID      Kind = "VALIDATION_DUPLICATE_ID"
	KindValidationUnknownStep      Kind = "VALIDATION_UNKNOWN_STEP"
	KindValidationUnknownAdapter   Kind = "VALIDATION_UNKNOWN_ADAPTER"
	KindValidationEmptyWorkflow    Kind = "VALIDATION_EMPTY_WORKFLOW"
	KindValidationForwardReference Kind = "VALIDATION_FORWARD_REFERENCE"
	KindValidationCircularDep      Kind = "VALIDATION_CIRCULAR_DEPENDENCY"
	KindValidationAmbiguousAction  Kind = "VALIDATION_AMBIGUOUS_ADAPTER"
	KindValidationReservedNamespace Kind = "VALIDATION_RESERVED_NAMESPACE"

	KindExecutionTimeout              Kind = "EXECUTION_TIMEOUT"
	KindExecutionAdapterError         Kind = "EXECUTION_ADAPTER_ERROR"
	KindExecutionStepFailed           Kind = "EXECUTION_STEP_FAILED"
	KindExecutionIllegalState         Kind = "EXECUTION_ILLEGAL_TRANSITION"
	KindExecutionUnresolvedReference  Kind = "EXECUTION_UNRESOLVED_REFERENCE"

	KindRuntimePermissionDenied  Kind = "RUNTIME_PERMISSION_DENIED"
	KindRuntimeResourceExhausted Kind = "RUNTIME_RESOURCE_EXHAUSTED"
	KindRuntimeInternal          Kind = "RUNTIME_INTERNAL_ERROR"
	KindRuntimeCancelled         Kind = "RUNTIME_CANCELLED"
)

// codeCatalog assigns the stable ORB-<cat>-<n> code, default severity, and
// exit code to every Kind. Every Kind maps to exactly one exit code, as
// required by spec section 6.
var codeCatalog = map[Kind]struct {
	code     string
	category Category
	severity Severity
	exitCode int
	hint     string
}{
	KindSchemaMissingField:   {"ORB-S-001", CategorySchema, SeverityFatal, 1, "add the missing required field"},
	KindSchemaInvalidEnum:    {"ORB-S-002", CategorySchema, SeverityFatal, 1, "use one of the documented enum values"},
	KindSchemaInvalidType:    {"ORB-S-003", CategorySchema, SeverityFatal, 1, "correct the field's type"},
	KindSchemaInvalidID:      {"ORB-S-004", CategorySchema, SeverityFatal, 1, "ids must match ^[a-zA-Z_][a-zA-Z0-9_-]*$"},
	KindSchemaInvalidDefault: {"ORB-S-005", CategorySchema, SeverityFatal, 1, "durations must match ^[0-9]+(ms|s|m|h)$"},
	KindSchemaParseError:     {"ORB-S-006", CategorySchema, SeverityFatal, 1, "fix the document's syntax"},

	KindValidationDuplicateID:       {"ORB-V-001", CategoryValidation, SeverityFatal, 1, "step ids must be unique"},
	KindValidationUnknownStep:       {"ORB-V-002", CategoryValidation, SeverityFatal, 1, "needs must reference a declared step id"},
	KindValidationUnknownAdapter:    {"ORB-V-003", CategoryValidation, SeverityFatal, 1, "register an action handler for this uses string"},
	KindValidationEmptyWorkflow:     {"ORB-V-004", CategoryValidation, SeverityFatal, 1, "a workflow requires at least one step"},
	KindValidationForwardReference:  {"ORB-V-005", CategoryValidation, SeverityFatal, 1, "reference only steps declared earlier"},
	KindValidationCircularDep:       {"ORB-V-006", CategoryValidation, SeverityCritical, 2, "remove the cyclical dependency"},
	KindValidationAmbiguousAction:   {"ORB-V-007", CategoryValidation, SeverityFatal, 1, "disambiguate overlapping action patterns"},
	KindValidationReservedNamespace: {"ORB-V-008", CategoryValidation, SeverityFatal, 1, "the resolver does not implement this namespace yet"},

	KindExecutionTimeout:             {"ORB-E-001", CategoryExecution, SeverityError, 3, "increase the step timeout or optimize the action"},
	KindExecutionAdapterError:        {"ORB-E-002", CategoryExecution, SeverityError, 1, "inspect the action handler's reported error"},
	KindExecutionStepFailed:          {"ORB-E-003", CategoryExecution, SeverityError, 2, "inspect the failed step's output"},
	KindExecutionIllegalState:        {"ORB-E-004", CategoryExecution, SeverityError, 4, "this is an engine invariant violation"},
	KindExecutionUnresolvedReference: {"ORB-E-005", CategoryExecution, SeverityError, 1, "check the referenced namespace, step id, or path"},

	KindRuntimePermissionDenied:  {"ORB-R-001", CategoryRuntime, SeverityCritical, 6, "remove the reserved or privileged field"},
	KindRuntimeResourceExhausted: {"ORB-R-002", CategoryRuntime, SeverityMedium, 1, "reduce concurrency or retry later"},
	KindRuntimeInternal:          {"ORB-R-003", CategoryRuntime, SeverityFatal, 4, "this indicates an engine bug"},
	KindRuntimeCancelled:         {"ORB-R-004", CategoryRuntime, SeverityError, 3, "the run was cancelled before completion"},
}

// Error is the single structured error type produced by every core
// component. It is never constructed with a bare string message alone;
// callers use New below.
type Error struct {
	Code     string
	Kind     Kind
	Category Category
	Severity Severity
	Message  string
	Hint     string
	Path     string
	ExitCode int
	Context  map[string]interface{}
	Cause    error
}

// New constructs an Error for the given Kind, looking up its catalog entry.
func New(kind Kind, message string) *Error {
	entry, ok := codeCatalog[kind]
	if !ok {
		entry = codeCatalog[KindRuntimeInternal]
		kind = KindRuntimeInternal
	}
	return &Error{
		Code:     entry.code,
		Kind:     kind,
		Category: entry.category,
		Severity: entry.severity,
		Message:  message,
		Hint:     entry.hint,
		ExitCode: entry.exitCode,
	}
}

// WithPath annotates the error with the offending location in the workflow
// object, e.g. "workflow.steps[2].with.url".
func (e *Error) WithPath(path string) *Error {
	if e == nil {
		return nil
	}
	e.Path = path
	return e
}

// WithContext merges additional contextual metadata and returns the
// receiver for chaining.
func (e *Error) WithContext(ctx map[string]interface{}) *Error {
	if e == nil {
		return nil
	}
	if e.Context == nil {
		e.Context = make(map[string]interface{}, len(ctx))
	}
	for k, v := range ctx {
		e.Context[k] = v
	}
	return e
}

// WithCause attaches the underlying error that triggered this one.
func (e *Error) WithCause(cause error) *Error {
	if e == nil {
		return nil
	}
	e.Cause = cause
	return e
}

// WithSeverity overrides the catalog's default severity, used when a
// handler-reported code needs stronger or weaker control flow.
func (e *Error) WithSeverity(s Severity) *Error {
	if e == nil {
		return nil
	}
	e.Severity = s
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.Path != "" {
		fmt.Fprintf(&b, " (at %s)", e.Path)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is allows errors.Is comparisons keyed on Kind.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// Control returns the execution-control decision for this error's severity.
func (e *Error) Control() Control {
	if e == nil {
		return ControlContinue
	}
	return ControlFor(e.Severity)
}

// retryableKinds lists the error kinds a step executor may retry by default.
var retryableKinds = map[Kind]bool{
	KindExecutionTimeout:         true,
	KindExecutionAdapterError:    true,
	KindRuntimeResourceExhausted: true,
}

// IsRetryable reports whether an error of this kind may be retried.
func IsRetryable(kind Kind) bool {
	return retryableKinds[kind]
}

// SuggestField returns the nearest match for an unknown field name among the
// set of valid field names at that location, using normalized Levenshtein
// edit distance. It returns ("", false) when no candidate clears the 0.6
// similarity ratio.
func SuggestField(unknown string, valid []string) (string, bool) {
	best := ""
	bestRatio := 0.0
	for _, candidate := range valid {
		dist := levenshtein.ComputeDistance(unknown, candidate)
		maxLen := len(unknown)
		if len(candidate) > maxLen {
			maxLen = len(candidate)
		}
		if maxLen == 0 {
			continue
		}
		ratio := 1.0 - float64(dist)/float64(maxLen)
		if ratio > bestRatio {
			bestRatio = ratio
			best = candidate
		}
	}
	if bestRatio >= 0.6 {
		return best, true
	}
	return "", false
}

// exceptionToken maps a substring found at the start of a word in a raw
// exception message to the Kind it should be classified as. Checked in
// order; first match wins.
var exceptionTokens = []struct {
	token string
	kind  Kind
}{
	{"circular", KindValidationCircularDep},
	{"cycle", KindValidationCircularDep},
	{"duplicate", KindValidationDuplicateID},
	{"unknown field", KindSchemaMissingField},
	{"missing", KindSchemaMissingField},
	{"required", KindSchemaMissingField},
	{"permission", KindRuntimePermissionDenied},
	{"denied", KindRuntimePermissionDenied},
	{"timeout", KindExecutionTimeout},
	{"syntax", KindSchemaParseError},
	{"parse", KindSchemaParseError},
	{"yaml", KindSchemaParseError},
	{"type", KindSchemaInvalidType},
	{"expected", KindSchemaInvalidType},
}

// ClassifyException pattern-matches a raw exception's message against the
// known tokens from spec section 4.1 and wraps it in a new Error, preserving
// the original cause.
func ClassifyException(err error) *Error {
	if err == nil {
		return nil
	}
	if existing, ok := err.(*Error); ok {
		return existing
	}
	msg := strings.ToLower(err.Error())
	for _, entry := range exceptionTokens {
		for i := strings.Index(msg, entry.token); i >= 0; {
			if i == 0 || msg[i-1] < 'a' || msg[i-1] > 'z' {
				return New(entry.kind, err.Error()).WithCause(err)
			}
			next := strings.Index(msg[i+1:], entry.token)
			if next < 0 {
				break
			}
			i += next + 1
		}
	}
	return New(KindRuntimeInternal, err.Error()).WithCause(err)
}
