package validation

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a validation error with field-level details
type ValidationError struct {
	Errors map[string]string `json:"errors"`
}

// Error implements the error interface. Fields are reported in name order.
func (v *ValidationError) Error() string {
	fields := make([]string, 0, len(v.Errors))
	for field := range v.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	messages := make([]string, 0, len(fields))
	for _, field := range fields {
		messages = append(messages, v.Errors[field])
	}
	return strings.Join(messages, "; ")
}

// NewValidationError creates a new ValidationError from validator.ValidationErrors
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	errors := make(map[string]string)

	for _, err := range errs {
		errors[err.Field()] = getErrorMessage(err)
	}

	return &ValidationError{Errors: errors}
}

func getErrorMessage(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_without":
		return fmt.Sprintf("%s is required when %s is missing", field, param)
	case "min":
		return fmt.Sprintf("%s must %s", field, sizeBound("at least", param, err.Kind()))
	case "max":
		return fmt.Sprintf("%s must %s", field, sizeBound("at most", param, err.Kind()))
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "input_kind":
		return fmt.Sprintf("%s must be one of: text, url, image, qr, advisor", field)
	case "user_type":
		return fmt.Sprintf("%s must be one of: INVESTOR, REGULATOR, ADMIN", field)
	case "risk_level":
		return fmt.Sprintf("%s must be one of: LOW, MEDIUM, HIGH", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func sizeBound(bound, param string, kind reflect.Kind) string {
	switch kind {
	case reflect.String:
		return fmt.Sprintf("be %s %s characters long", bound, param)
	case reflect.Slice, reflect.Array, reflect.Map:
		return fmt.Sprintf("have %s %s items", bound, param)
	default:
		return fmt.Sprintf("be %s %s", bound, param)
	}
}
