// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds. Every error returned by a use case matches exactly one of
// these through errors.Is().
var (
	// ErrNotAllowed - the actor's role may not run the operation.
	ErrNotAllowed = errors.New("not allowed")

	// ErrNotFound - a referenced resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists - a duplicate enrollment, grade or student.
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrConflict - invalid grade shape or operating on a finished course.
	ErrConflict = errors.New("conflict")

	// ErrInvalidField - malformed name, email, CPF, password, birthday or date.
	ErrInvalidField = errors.New("invalid field")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "assessment", "student", "course"
	Op      string // Operation that failed, e.g., "Create", "Update"
	Kind    error  // Base error kind for errors.Is() checking
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

// NotAllowed builds an ErrNotAllowed error.
func NotAllowed(domain, op string) *DomainError {
	return NewDomainError(domain, op, ErrNotAllowed, "Not allowed")
}

// NotFound builds an ErrNotFound error for the named resource.
func NotFound(domain, op, resource string) *DomainError {
	return NewDomainError(domain, op, ErrNotFound, resource+" not found")
}

// AlreadyExists builds an ErrAlreadyExists error for the named resource.
func AlreadyExists(domain, op, resource string) *DomainError {
	return NewDomainError(domain, op, ErrAlreadyExists, resource+" already exists")
}

// Conflict builds an ErrConflict error.
func Conflict(domain, op, message string) *DomainError {
	return NewDomainError(domain, op, ErrConflict, message)
}

// InvalidField builds an ErrInvalidField error for the named field.
func InvalidField(domain, op, field string) *DomainError {
	return NewDomainError(domain, op, ErrInvalidField, "invalid "+field)
}

// IsNotAllowed checks if the error is a role rejection.
func IsNotAllowed(err error) bool {
	return errors.Is(err, ErrNotAllowed)
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsConflict checks if the error is a conflict error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsInvalidField checks if the error is a field validation error.
func IsInvalidField(err error) bool {
	return errors.Is(err, ErrInvalidField)
}

// IsBusiness reports whether err belongs to one of the business kinds above.
// Anything else is an infrastructure failure.
func IsBusiness(err error) bool {
	return IsNotAllowed(err) ||
		IsNotFound(err) ||
		IsAlreadyExists(err) ||
		IsConflict(err) ||
		IsInvalidField(err)
}
