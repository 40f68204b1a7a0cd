// Package validation wraps go-playground/validator for service inputs.
package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Error lists the fields that failed validation, keyed by lower-cased field name.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.Fields[k])
	}
	return "invalid input: " + strings.Join(parts, " ")
}

// Struct validates payload against its `validate` tags. It returns nil or *Error.
func Struct(payload any) error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	fields := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		name := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			fields[name] = fmt.Sprintf("The %s field is required.", name)
		case "min":
			fields[name] = fmt.Sprintf("The %s must be at least %s.", name, fe.Param())
		case "max":
			fields[name] = fmt.Sprintf("The %s must be at most %s.", name, fe.Param())
		case "oneof":
			fields[name] = fmt.Sprintf("The %s must be one of: %s.", name, fe.Param())
		case "gt":
			fields[name] = fmt.Sprintf("The %s must be greater than %s.", name, fe.Param())
		default:
			fields[name] = fmt.Sprintf("The %s field is invalid.", name)
		}
	}

	return &Error{Fields: fields}
}

// IsError reports whether err carries field validation failures.
func IsError(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}
