// Package errors defines the error classes shared by every domain package.
// Domain errors wrap exactly one class so handlers can map them without
// knowing the domain.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrGone marks resources that existed and were permanently erased.
	ErrGone = errors.New("gone")

	// ErrUnavailable marks failures of a dependency; the same call may succeed later.
	ErrUnavailable = errors.New("unavailable")
)

// classes is ordered by precedence for errors joined from several causes.
var classes = []error{
	ErrUnavailable,
	ErrGone,
	ErrNotFound,
	ErrForbidden,
	ErrUnauthorized,
	ErrConflict,
	ErrInvalidInput,
}

// Wrap adds context to err. Returns nil for a nil err.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Class returns the error class err belongs to, or nil for unclassified
// (internal) errors.
func Class(err error) error {
	if err == nil {
		return nil
	}
	for _, class := range classes {
		if errors.Is(err, class) {
			return class
		}
	}
	return nil
}

// Retryable reports whether err came from a transient dependency failure.
func Retryable(err error) bool {
	return Class(err) == ErrUnavailable
}
