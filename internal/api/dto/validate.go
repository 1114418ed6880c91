package dto

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/repairshop-service/pkg/util/errorutil"
)

var validate = validator.New()

// Validate runs struct tag validation and converts failures into the
// standard error shape.
func Validate(payload any) error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errorutil.NewValidationError("invalid payload", nil)
	}
	details := make(map[string]any, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[fieldErr.Field()] = fieldErr.Tag()
	}
	return errorutil.NewValidationError("validation failed", details)
}
