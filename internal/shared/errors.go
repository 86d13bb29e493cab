package shared

import (
	"errors"
	"fmt"
)

// Failure categories for statement generation. All failures stem from bad
// data or bad definitions, never transient conditions, so nothing here is
// retryable.
var (
	// ErrValidation indicates a malformed filter, variable or report definition.
	ErrValidation = errors.New("validation failed")
	// ErrResolution indicates an unresolvable variable reference or unsupported aggregate.
	ErrResolution = errors.New("resolution failed")
	// ErrData indicates a required movement table is missing or empty.
	ErrData = errors.New("data unavailable")
	// ErrNotFound indicates a missing resource (report definition, statement type).
	ErrNotFound = errors.New("not found")
)

// ValidationError names the subject that failed validation.
type ValidationError struct {
	Subject string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Subject, e.Reason)
}

// Unwrap ties the error to the ErrValidation category.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// ResolutionError names the variable or reference that could not be resolved.
type ResolutionError struct {
	Name   string
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("variable %q: %s", e.Name, e.Reason)
}

// Unwrap ties the error to the ErrResolution category.
func (e *ResolutionError) Unwrap() error { return ErrResolution }

// DataError describes a missing or empty input table.
type DataError struct {
	Reason string
}

func (e *DataError) Error() string { return e.Reason }

// Unwrap ties the error to the ErrData category.
func (e *DataError) Unwrap() error { return ErrData }
