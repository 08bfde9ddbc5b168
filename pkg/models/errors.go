package models

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input: bad recipients, negative
	// amounts, unrecognized enum values. Rejected before any write.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidState marks an unrecognized status target on a task
	// transition. Rejected before any write.
	ErrInvalidState = errors.New("invalid state")

	// ErrNotFound marks an unknown entity id.
	ErrNotFound = errors.New("not found")
)

// DomainError wraps one of the sentinel errors above with detail.
type DomainError struct {
	Kind error
	Msg  string
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *DomainError) Unwrap() error { return e.Kind }

// Validationf builds a ValidationError.
func Validationf(format string, args ...any) error {
	return &DomainError{Kind: ErrValidation, Msg: fmt.Sprintf(format, args...)}
}

// InvalidStatef builds an InvalidStateError.
func InvalidStatef(format string, args ...any) error {
	return &DomainError{Kind: ErrInvalidState, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a NotFoundError.
func NotFoundf(format string, args ...any) error {
	return &DomainError{Kind: ErrNotFound, Msg: fmt.Sprintf(format, args...)}
}
