package core

import (
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"recordstack/internal/types"
)

// Validator wraps go-playground/validator and translates tag failures into
// the flat VALIDATION_ERROR shape with one message per field.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator builds the validator with JSON tag names so error details
// reference the wire field names, not the Go field names.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v, logger: logger}
}

// ValidateStruct validates dst against its struct tags. Failures become a
// VALIDATION_ERROR with per-field messages in details.
func (v *Validator) ValidateStruct(dst any) error {
	err := v.validate.Struct(dst)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		v.logger.Error("struct validation failed unexpectedly", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation failed", err)
	}

	fieldErrs := make(map[string]string, len(validationErrs))
	for _, fe := range validationErrs {
		fieldErrs[fe.Field()] = messageForTag(fe)
	}
	return types.NewAppErrorWithDetails(types.ErrCodeValidation,
		"one or more fields are invalid", nil, map[string]any{
			"field_errors": fieldErrs,
		})
}

func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed validation rule: " + fe.Tag()
	}
}
