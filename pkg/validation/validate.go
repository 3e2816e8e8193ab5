// Package validation wraps go-playground/validator and reports failures as
// classified validation errors.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Struct validates the struct tags of value
func Struct(value any) error {
	if err := validate.Struct(value); err != nil {
		return toValidationError(value, err)
	}
	return nil
}

// Var validates a single value against a validator tag
func Var(field string, value any, tag string) error {
	if err := validate.Var(value, tag); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fernerrors.NewValidationError("%s: failed '%s' validation, got '%v'", field, verrs[0].Tag(), value)
		}
		return fernerrors.NewValidationError("%s: %v", field, err)
	}
	return nil
}

func toValidationError(input any, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fernerrors.NewValidationError("%v", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed rule '%s=%s', got '%v'", fe.StructField(), fe.Tag(), fe.Param(), fe.Value()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("field '%s' failed rule '%s'", fe.StructField(), fe.Tag()))
	}
	return fernerrors.NewValidationError("invalid %T: %s", input, strings.Join(msgs, "; "))
}
