// Package shared contains common domain types and errors used across all
// domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// Configuration errors
	ErrConfiguration = errors.New("invalid configuration")

	// Concurrency errors
	ErrLocked = errors.New("resource is locked")

	// Infrastructure errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "matching", "questionnaire"
	Op      string // Operation that failed, e.g., "Normalize", "Match"
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

// Questionnaire domain errors
var (
	ErrQuestionNotFound     = NewDomainError("questionnaire", "Find", ErrNotFound, "question not found")
	ErrUnknownQuestionType  = NewDomainError("questionnaire", "Validate", ErrInvalidInput, "unknown question type")
	ErrSectionWeightsSum    = NewDomainError("questionnaire", "Validate", ErrConfiguration, "section weights must sum to 1.0")
	ErrDuplicateQuestionID  = NewDomainError("questionnaire", "Validate", ErrAlreadyExists, "duplicate question id")
	ErrInvalidImportanceMap = NewDomainError("questionnaire", "Validate", ErrConfiguration, "importance multipliers must be strictly increasing")
)

// Matching domain errors
var (
	ErrMalformedAnswer     = NewDomainError("matching", "Normalize", ErrInvalidFormat, "answer does not fit question type")
	ErrMalformedPreference = NewDomainError("matching", "Normalize", ErrInvalidFormat, "preference does not fit question type")
	ErrInvalidImportance   = NewDomainError("matching", "Normalize", ErrValueOutOfRange, "importance must be between 1 and 5")
	ErrInvalidUser         = NewDomainError("matching", "Validate", ErrInvalidEntity, "user is missing required fields")
	ErrEmptyBatch          = NewDomainError("matching", "Run", ErrEmptyValue, "batch id cannot be empty")
	ErrRunInProgress       = NewDomainError("matching", "Run", ErrLocked, "matching run already in progress for batch")
	ErrRunNotFound         = NewDomainError("matching", "FindRun", ErrNotFound, "matching run not found")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsConfiguration checks if the error comes from bad configuration.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrLocked)
}
