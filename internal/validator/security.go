package validator

import (
	"fmt"
	"strings"

	"github.com/orbyt/workflow-engine/internal/domain/workflow"
)

// reservedCategories are the fieldType values a reserved-key violation is
// classified into (spec 4.7.1).
var reservedCategories = []string{"billing", "execution", "identity", "ownership", "usage", "internal"}

// CheckSecurity is phase 1 of the validator: reject any key, at any nesting
// depth, that starts with `_` or carries the `orbyt.` annotation prefix.
// It walks the raw decoded document rather than the typed Definition,
// because a typed struct silently discards fields it doesn't declare —
// exactly the fields this phase must catch. Stops at the first violation.
func CheckSecurity(raw map[string]interface{}) error {
	return walkSecurity(raw, "")
}

func walkSecurity(node interface{}, path string) error {
	switch v := node.(type) {
	case map[string]interface{}:
		for key, val := range v {
			childPath := key
			if path != "" {
				childPath = path + "." + key
			}
			if fieldType, reserved := inferFieldType(key); reserved {
				return workflow.New(workflow.KindRuntimePermissionDenied, fmt.Sprintf("reserved field %q is not settable by workflow authors", childPath)).
					WithPath(childPath).
					WithContext(map[string]interface{}{"fieldType": fieldType, "field": childPath})
			}
			if err := walkSecurity(val, childPath); err != nil {
				return err
			}
		}
	case []interface{}:
		for i, item := range v {
			childPath := fmt.Sprintf("%s[%d]", path, i)
			if err := walkSecurity(item, childPath); err != nil {
				return err
			}
		}
	}
	return nil
}

// inferFieldType reports whether key is reserved, and if so which of the
// billing/execution/identity/ownership/usage/internal categories it infers
// from the name. Any `_`-prefixed key is reserved; one matching a known
// category by substring is classified accordingly, otherwise it falls back
// to "internal". The `orbyt.` annotation prefix is always "execution".
func inferFieldType(key string) (string, bool) {
	lower := strings.ToLower(key)
	if strings.HasPrefix(lower, "orbyt.") {
		return "execution", true
	}
	if !strings.HasPrefix(key, "_") {
		return "", false
	}
	trimmed := strings.TrimPrefix(lower, "_")
	for _, category := range reservedCategories {
		if strings.Contains(trimmed, category) {
			return category, true
		}
	}
	return "internal", true
}
