// Package apierr defines the behavioral error kinds the orchestration API
// distinguishes, per the error-handling design: validation, not-found, and
// state-conflict errors are all synchronous and recovered into a structured
// result at the API boundary rather than propagated as opaque errors.
package apierr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error for API-layer status mapping.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindStateConflict Kind = "state_conflict"
)

// Error is a typed error carrying a behavioral Kind alongside its message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Validation reports malformed input or an unresolvable reference.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports that a referenced job or dataset does not exist.
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// StateConflict reports that an operation is not permitted in the entity's current state.
func StateConflict(format string, args ...any) error {
	return &Error{Kind: KindStateConflict, Message: fmt.Sprintf(format, args...)}
}

// As extracts an *Error from err, unwrapping as needed.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
