package workflow

// Value is a tagged variant over the dynamic JSON/YAML-shaped values that
// flow through workflow documents, step outputs, and the resolution scope.
// Representing dynamic data uniformly here (rather than passing
// map[string]interface{} everywhere) gives the resolver a single typed
// accessor surface to traverse, per the Design Notes on dynamic field
// access.
type Value struct {
	raw interface{}
}

// NewValue wraps a raw decoded value (as produced by yaml.Unmarshal into
// interface{}, or constructed directly by Go callers) as a Value.
func NewValue(raw interface{}) Value {
	return Value{raw: raw}
}

// Raw returns the underlying value, unwrapped.
func (v Value) Raw() interface{} {
	return v.raw
}

// IsNil reports whether the value is null/unset.
func (v Value) IsNil() bool {
	return v.raw == nil
}

// AsMap returns the value as a string-keyed map when possible.
func (v Value) AsMap() (map[string]interface{}, bool) {
	m, ok := v.raw.(map[string]interface{})
	return m, ok
}

// AsSlice returns the value as a slice when possible.
func (v Value) AsSlice() ([]interface{}, bool) {
	s, ok := v.raw.([]interface{})
	return s, ok
}

// AsString returns the value as a string when possible.
func (v Value) AsString() (string, bool) {
	s, ok := v.raw.(string)
	return s, ok
}

// Get traverses a dotted path of map keys, returning the value found and
// whether every segment resolved. A nil intermediate value short-circuits
// to a "not found" result rather than panicking, matching the resolver's
// undefined-safe output mapping requirement (spec 4.8 step 5).
func (v Value) Get(path []string) (Value, bool) {
	current := v.raw
	for _, key := range path {
		m, ok := current.(map[string]interface{})
		if !ok {
			return Value{}, false
		}
		next, ok := m[key]
		if !ok {
			return Value{}, false
		}
		current = next
	}
	return Value{raw: current}, true
}

// Truthy applies the coercion rules from spec section 4.8 step 1: bool as
// itself; string truthy unless "false", "0", or empty (case-insensitive for
// "false"); otherwise falsy iff nil, 0, or NaN.
func Truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		switch val {
		case "", "0":
			return false
		}
		return !equalFold(val, "false")
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0 && val == val // val == val excludes NaN
	default:
		return true
	}
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// IsEmpty reports unset/null/empty-string per the default-operator rule.
func IsEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}
