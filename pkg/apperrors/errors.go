// Package apperrors defines the error taxonomy shared by services and handlers.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when no caller identity is present.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden is returned when the caller lacks the role or assignment for an operation.
	ErrForbidden = errors.New("insufficient permissions")
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned for malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict is returned when a unique linkage already exists.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable is returned when an optional backing service is not configured.
	ErrUnavailable = errors.New("service unavailable")
)

// Validation wraps ErrValidation with a client-facing message.
func Validation(format string, args ...any) error {
	return &detailed{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

// NotFound wraps ErrNotFound naming the missing entity.
func NotFound(entity string) error {
	return &detailed{kind: ErrNotFound, msg: entity + " not found"}
}

// Conflict wraps ErrConflict with a client-facing message.
func Conflict(format string, args ...any) error {
	return &detailed{kind: ErrConflict, msg: fmt.Sprintf(format, args...)}
}

// Unauthenticated wraps ErrUnauthenticated with a client-facing message.
func Unauthenticated(msg string) error {
	return &detailed{kind: ErrUnauthenticated, msg: msg}
}

// Forbidden wraps ErrForbidden with a client-facing message.
func Forbidden(format string, args ...any) error {
	return &detailed{kind: ErrForbidden, msg: fmt.Sprintf(format, args...)}
}

// Unavailable wraps ErrUnavailable naming the missing service.
func Unavailable(service string) error {
	return &detailed{kind: ErrUnavailable, msg: service + " is not configured"}
}

type detailed struct {
	kind error
	msg  string
}

func (e *detailed) Error() string { return e.msg }

func (e *detailed) Unwrap() error { return e.kind }
