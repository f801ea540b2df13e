package validator

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/orbyt/workflow-engine/internal/domain/workflow"
	"github.com/orbyt/workflow-engine/internal/loader"
)

var (
	shapeOnce sync.Once
	shapeInst *validator.Validate

	stepIDPattern   = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)
	durationPattern = regexp.MustCompile(`^[0-9]+(ms|s|m|h)$`)
)

// shapeValidator returns the process-wide validator instance, registering
// the two custom tags the document's struct tags reference. Grounded on the
// teacher's validatorInstance (internal/config/validator.go): a
// sync.Once-guarded singleton with RegisterValidation calls for
// domain-specific rules the stdlib tag set doesn't cover.
func shapeValidator() *validator.Validate {
	shapeOnce.Do(func() {
		v := validator.New()
		_ = v.RegisterValidation("stepid", func(fl validator.FieldLevel) bool {
			return stepIDPattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
			return durationPattern.MatchString(fl.Field().String())
		})
		shapeInst = v
	})
	return shapeInst
}

// CheckShape is phase 2 of the validator (spec 4.7.2): required fields
// present, enums in their known set, types correct, ids and duration
// strings pattern-matched. Stops at the first violation.
func CheckShape(doc loader.Document) error {
	if err := shapeValidator().Struct(doc); err != nil {
		return convertShapeError(err)
	}
	if len(doc.Workflow.Steps) == 0 {
		return workflow.New(workflow.KindValidationEmptyWorkflow, "workflow.steps must be non-empty").WithPath("workflow.steps")
	}
	return nil
}

// convertShapeError maps the first go-playground/validator field error into
// the taxonomy's Kind, grounded on the teacher's convertValidationError.
func convertShapeError(err error) error {
	ves, ok := err.(validator.ValidationErrors)
	if !ok || len(ves) == 0 {
		return workflow.New(workflow.KindSchemaParseError, err.Error()).WithCause(err)
	}

	fe := ves[0]
	field := fieldPath(fe)

	switch fe.Tag() {
	case "required":
		return workflow.New(workflow.KindSchemaMissingField, fmt.Sprintf("%s is required", field)).WithPath(field)
	case "oneof":
		return workflow.New(workflow.KindSchemaInvalidEnum, fmt.Sprintf("%s must be one of: %s", field, fe.Param())).WithPath(field)
	case "stepid":
		return workflow.New(workflow.KindSchemaInvalidID, fmt.Sprintf("%s must match ^[a-zA-Z_][a-zA-Z0-9_-]*$", field)).WithPath(field)
	case "duration":
		return workflow.New(workflow.KindSchemaInvalidDefault, fmt.Sprintf("%s must match ^[0-9]+(ms|s|m|h)$", field)).WithPath(field)
	case "min":
		return workflow.New(workflow.KindValidationEmptyWorkflow, fmt.Sprintf("%s requires at least %s entries", field, fe.Param())).WithPath(field)
	default:
		return workflow.New(workflow.KindSchemaInvalidType, fmt.Sprintf("%s failed validation for tag %q", field, fe.Tag())).WithPath(field)
	}
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	parts := strings.Split(ns, ".")
	lowered := make([]string, 0, len(parts))
	for i, part := range parts {
		if i == 0 {
			// drop the leading "Document" struct name
			continue
		}
		lowered = append(lowered, strings.ToLower(part))
	}
	return strings.Join(lowered, ".")
}
