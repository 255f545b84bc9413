package domain

import (
	"errors"
	"fmt"
)

// Failure taxonomy of the sync core. Callers classify with errors.Is;
// the concrete message travels alongside via wrapping.
var (
	ErrValidation       = errors.New("validation failed")
	ErrAuthorization    = errors.New("not authorized")
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError rejects bad input before any store call.
func ValidationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// AuthorizationError deliberately does not distinguish a wrong password
// from a missing membership.
func AuthorizationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrAuthorization, msg)
}

func NotFoundError(kind, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
}
