// Package domain holds the error vocabulary shared by the domain packages.
// The HTTP layer maps these sentinels to status codes, so every domain error
// should wrap exactly one of them.
package domain

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is wrapped by every "no such record" error.
	ErrNotFound = errors.New("not found")
	// ErrInvalid is wrapped by every caller-fixable validation failure.
	ErrInvalid = errors.New("invalid input")
	// ErrConflict is wrapped by uniqueness and state conflicts.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized means the caller is not authenticated.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the caller is authenticated but lacks the role.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

// Invalid returns a ValidationError for field.
func Invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

// NotFound returns an error wrapping ErrNotFound for the named entity.
func NotFound(entity string) error {
	return fmt.Errorf("%s %w", entity, ErrNotFound)
}
