// Package shared contains common domain types, errors and events
// that are used across all domain packages.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// ErrInvalidArgument marks a caller-supplied value outside its domain
	// (negative XP, score outside [0,100], unknown lesson id).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCorruptState marks a persisted or imported record that cannot be decoded
	// or violates a record invariant.
	ErrCorruptState = errors.New("corrupt persisted state")

	// ErrStorageUnavailable marks a store that could not read or write.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrNotFound marks a missing stored value. It is not a failure on load.
	ErrNotFound = errors.New("not found")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progress", "store", "backup"
	Op      string // Operation that failed, e.g., "AddXP", "Save"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// InvalidArgument is shorthand for a DomainError of kind ErrInvalidArgument.
func InvalidArgument(domain, op, format string, args ...any) *DomainError {
	return NewDomainError(domain, op, ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// CorruptState is shorthand for a DomainError of kind ErrCorruptState.
func CorruptState(domain, op string, err error, format string, args ...any) *DomainError {
	return WrapError(domain, op, ErrCorruptState, fmt.Sprintf(format, args...), err)
}

// StorageUnavailable is shorthand for a DomainError of kind ErrStorageUnavailable.
func StorageUnavailable(domain, op string, err error) *DomainError {
	return WrapError(domain, op, ErrStorageUnavailable, "storage unavailable", err)
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidArgument checks if the error is a caller error.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsCorruptState checks if the error reports undecodable or inconsistent data.
func IsCorruptState(err error) bool {
	return errors.Is(err, ErrCorruptState)
}

// IsStorageUnavailable checks if the error is from an unreachable store.
func IsStorageUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

// IsRetryable checks if the operation can be retried.
// Only storage failures are transient; bad input and bad data never heal.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) && !errors.Is(err, ErrCorruptState)
}
