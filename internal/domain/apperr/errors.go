// Package apperr defines the error taxonomy shared by every layer.
// Callers wrap a sentinel with context and match it with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a receipt, user or section does not exist
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the actor's role or section does not permit the operation
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState is returned when the receipt is not in a state the operation applies to
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict is returned when a concurrent writer changed the record, or a uniqueness/reference rule blocks the change
	ErrConflict = errors.New("conflict")

	// ErrValidation is returned for missing or malformed input
	ErrValidation = errors.New("validation error")

	// ErrUnauthenticated is returned when credentials are missing or wrong
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInfrastructure wraps store, blob and mailer transport failures
	ErrInfrastructure = errors.New("infrastructure error")
)

// NotFound wraps ErrNotFound with a formatted message
func NotFound(format string, args ...interface{}) error {
	return wrap(ErrNotFound, format, args...)
}

// Forbidden wraps ErrForbidden with a formatted message
func Forbidden(format string, args ...interface{}) error {
	return wrap(ErrForbidden, format, args...)
}

// InvalidState wraps ErrInvalidState with a formatted message
func InvalidState(format string, args ...interface{}) error {
	return wrap(ErrInvalidState, format, args...)
}

// Conflict wraps ErrConflict with a formatted message
func Conflict(format string, args ...interface{}) error {
	return wrap(ErrConflict, format, args...)
}

// Validation wraps ErrValidation with a formatted message
func Validation(format string, args ...interface{}) error {
	return wrap(ErrValidation, format, args...)
}

// Unauthenticated wraps ErrUnauthenticated with a formatted message
func Unauthenticated(format string, args ...interface{}) error {
	return wrap(ErrUnauthenticated, format, args...)
}

// Infrastructure wraps a transport failure so it matches ErrInfrastructure
// while keeping the underlying cause reachable through errors.Is/As.
func Infrastructure(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrInfrastructure, op, err)
}

// IsDomain reports whether err belongs to one of the caller-facing categories
func IsDomain(err error) bool {
	for _, target := range []error{ErrNotFound, ErrForbidden, ErrInvalidState, ErrConflict, ErrValidation, ErrUnauthenticated} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func wrap(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
