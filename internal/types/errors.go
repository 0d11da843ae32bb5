package types

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches any *ValidationError via errors.Is
	ErrValidation = errors.New("validation failed")
	// ErrNotFound matches any *NotFoundError via errors.Is
	ErrNotFound = errors.New("not found")
	// ErrSchedulingInconsistency indicates a rule's recomputed fire time is not in the future.
	// It is fatal to the rule: the scheduler cancels the rule and reports it.
	ErrSchedulingInconsistency = errors.New("scheduling inconsistency")
	// ErrRuleCancelled is returned when mutating a rule that has already been cancelled
	ErrRuleCancelled = errors.New("reminder rule is cancelled")
	// ErrJobTerminal is returned when transitioning a job that already reached a terminal status
	ErrJobTerminal = errors.New("notification job is terminal")
)

// ValidationError is returned for inputs that are rejected synchronously and never retried
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError with a formatted reason
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundError reports an unknown subject, rule or other record
type NotFoundError struct {
	Kind string
	ID   string
}

// NewNotFoundError builds a NotFoundError
func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// Is lets errors.Is(err, ErrNotFound) match
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IsValidation reports whether err is (or wraps) a validation failure
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound reports whether err is (or wraps) a not-found failure
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
