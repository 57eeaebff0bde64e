package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDay              = errors.New("invalid day")
	ErrInvalidMonth            = errors.New("invalid month")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrInvalidInstallmentCount = errors.New("installment count must be between 2 and 48")
	ErrInvalidCategory         = errors.New("invalid category")
	ErrInvalidKind             = errors.New("invalid transaction kind")
	ErrEmptyName               = errors.New("empty name")
	ErrEmptySource             = errors.New("empty income source")
	ErrNoteTooLong             = errors.New("note too long (max 200 characters)")
)

var (
	// ErrValidation matches every *ValidationError through errors.Is.
	ErrValidation = errors.New("validation failed")

	// ErrNotAuthenticated is returned when an operation runs without a user in context.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrRemoteFailure matches every *RemoteError through errors.Is.
	ErrRemoteFailure = errors.New("remote failure")

	ErrNotFound = errors.New("not found")
)

// ValidationError reports malformed input to a computation or a write.
type ValidationError struct {
	Field string
	Err   error
}

func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// RemoteError wraps a failure of the record store or a notification transport.
// It is transient: the caller may retry the same operation.
type RemoteError struct {
	Op  string
	Err error
}

func NewRemoteError(op string, err error) *RemoteError {
	return &RemoteError{Op: op, Err: err}
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

func (e *RemoteError) Is(target error) bool { return target == ErrRemoteFailure }
