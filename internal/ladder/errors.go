package ladder

import (
	"errors"
	"fmt"
)

var (
	// ErrIncompleteInput means a required field is missing, zero or not a number.
	ErrIncompleteInput = errors.New("please fill in all fields")
	// ErrInvalidInput means the fields are present but break a ladder rule.
	ErrInvalidInput = errors.New("invalid ladder parameters")
)

// ValidationError names the offending field. It wraps ErrIncompleteInput or
// ErrInvalidInput.
type ValidationError struct {
	Field  string
	Reason string
	kind   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.kind }

func incomplete(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason, kind: ErrIncompleteInput}
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason, kind: ErrInvalidInput}
}

// IsValidation reports whether err is an expected input problem rather than a failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
