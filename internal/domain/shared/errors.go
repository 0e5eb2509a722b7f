// Package shared contains the error taxonomy, identifiers and domain events
// used by the streak, experience and level packages.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds. Match them with errors.Is.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	ErrInvalidState = errors.New("invalid state")

	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrStorage                = errors.New("storage failure")
	ErrTimeout                = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g. "streak", "experience", "level"
	Op      string // operation that failed, e.g. "Record", "Deduct"
	Kind    error  // base kind for errors.Is
	Message string
	Err     error // underlying cause, optional
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

// Identifier errors
var (
	ErrInvalidUserID     = NewDomainError("identity", "Validate", ErrInvalidID, "user id must not be empty")
	ErrInvalidActivityID = NewDomainError("identity", "Validate", ErrInvalidID, "activity id must not be empty")
)

// Streak domain errors
var (
	ErrStreakNotFound        = NewDomainError("streak", "Find", ErrNotFound, "streak not found")
	ErrActivityBeforeLast    = NewDomainError("streak", "Record", ErrInvalidState, "activity date precedes the last recorded activity")
	ErrInvalidFreezeDuration = NewDomainError("streak", "Freeze", ErrValueOutOfRange, "freeze duration must be at least one day")
)

// Experience domain errors
var (
	ErrExperienceNotFound = NewDomainError("experience", "Find", ErrNotFound, "experience record not found")
	ErrNonPositiveAmount  = NewDomainError("experience", "Validate", ErrInvalidInput, "amount must be positive")
	ErrNegativePoints     = NewDomainError("experience", "Set", ErrNegativeValue, "points cannot be negative")
	ErrMultiplierResult   = NewDomainError("experience", "Multiply", ErrInvalidState, "multiplier produced a negative amount")
)

// Level domain errors
var (
	ErrLevelNotFound      = NewDomainError("level", "Find", ErrNotFound, "level not found")
	ErrInvalidLevelNumber = NewDomainError("level", "Validate", ErrValueOutOfRange, "level number must be positive")
	ErrInvalidThreshold   = NewDomainError("level", "Validate", ErrNegativeValue, "level threshold cannot be negative")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsInvalidState checks if the error rejects an operation on current state.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// StorageError wraps a store failure with the operation that hit it.
func StorageError(domain, op string, err error) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return err
	}
	return WrapError(domain, op, ErrStorage, "store operation failed", err)
}
