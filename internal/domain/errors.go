package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated  = errors.New("not authenticated")
	ErrUnauthorized     = errors.New("not authorized")
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrStoreUnavailable = errors.New("ledger store unavailable")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsDomainError reports whether err is one of the sentinel outcomes that
// must never be retried against the store.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrValidation)
}
