// Package apperr holds the sentinel errors shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrConflict       = errors.New("already exists")
	ErrHeaderNotFound = errors.New("header not found")
)

// Invalid returns an ErrInvalidInput carrying a human readable reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
