package model

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input at the model boundary: a missing
// offering id/name, an out-of-range confidence, a duplicate signal name.
type ValidationError struct {
	Entity string `json:"entity"`
	ID     string `json:"id,omitempty"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("validation: %s %q: %s %s", e.Entity, e.ID, e.Field, e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s %s", e.Entity, e.Field, e.Reason)
}

// IsValidationError reports whether err (or anything it wraps) is a
// *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(entity, id, field, reason string) *ValidationError {
	return &ValidationError{Entity: entity, ID: id, Field: field, Reason: reason}
}
