// Package apperr defines the error kinds surfaced by the learning engine.
// Callers match on kinds with errors.Is; the HTTP layer maps each kind to a
// status code.
package apperr

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrValidation   = errors.New("validation error")
)

// Error carries the failed operation, its kind and a message that is safe to
// show to the learner.
type Error struct {
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is reports a match on either the kind or the wrapped error.
func (e *Error) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

func New(op string, kind error, message string) *Error {
	return &Error{Op: op, Kind: kind, Message: message}
}

func NotFound(op, message string) *Error     { return New(op, ErrNotFound, message) }
func Forbidden(op, message string) *Error    { return New(op, ErrForbidden, message) }
func Conflict(op, message string) *Error     { return New(op, ErrConflict, message) }
func InvalidState(op, message string) *Error { return New(op, ErrInvalidState, message) }
func Validation(op, message string) *Error   { return New(op, ErrValidation, message) }

// Message returns the learner-facing message of err, or "" when err is not
// an *Error.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ""
}
