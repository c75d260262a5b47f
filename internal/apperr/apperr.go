// Package apperr defines the request-level error taxonomy shared by the
// storage packages and the HTTP layer.
package apperr

import (
	"errors"
	"strings"
)

// ErrNotFound marks lookups of unknown conversations, messages, mailbox
// items, or notifications. Mapped to 404.
var ErrNotFound = errors.New("not found")

// ErrForbidden marks ownership violations, e.g. editing another user's
// message. Mapped to 403.
var ErrForbidden = errors.New("forbidden")

// ValidationError reports malformed input. Mapped to 400 with the field list.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

// Validation builds a ValidationError from field descriptions.
func Validation(fields ...string) error {
	return &ValidationError{Fields: fields}
}

// IsValidation reports whether err is a ValidationError and returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
