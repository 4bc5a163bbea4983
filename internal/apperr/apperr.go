// Package apperr defines the error taxonomy shared by the marketplace core and
// its transports. Every failure returned by a marketplace operation is one of
// the typed errors below or a wrapped storage error.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, machine-readable error code
type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeForbidden    Code = "FORBIDDEN"
	CodeConflict     Code = "CONFLICT"
	CodeNotFound     Code = "NOT_FOUND"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeInternal     Code = "INTERNAL_ERROR"
)

// ValidationError represents malformed or out-of-range input.
type ValidationError struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validation creates a validation error without field details
func Validation(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// InvalidField creates a validation error for a single field
func InvalidField(field, message string) *ValidationError {
	return &ValidationError{
		Message: fmt.Sprintf("%s: %s", field, message),
		Fields:  map[string]string{field: message},
	}
}

// AuthorizationError is returned when the actor does not own the entity it
// tries to mutate, or holds the wrong role for the operation.
type AuthorizationError struct {
	Message string `json:"message"`
}

func (e *AuthorizationError) Error() string {
	return e.Message
}

// Forbidden creates an authorization error
func Forbidden(message string) *AuthorizationError {
	return &AuthorizationError{Message: message}
}

// ConflictError is returned when an entity is not in the state required by
// the requested transition.
type ConflictError struct {
	Message string `json:"message"`
	Current string `json:"current,omitempty"`
}

func (e *ConflictError) Error() string {
	if e.Current != "" {
		return fmt.Sprintf("%s (current status: %s)", e.Message, e.Current)
	}
	return e.Message
}

// Conflict creates a conflict error
func Conflict(message string) *ConflictError {
	return &ConflictError{Message: message}
}

// ConflictState creates a conflict error carrying the entity's current status
func ConflictState(message, current string) *ConflictError {
	return &ConflictError{Message: message, Current: current}
}

// NotFoundError represents an unknown id.
type NotFoundError struct {
	Resource string `json:"resource"`
	ID       string `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id '%s' not found", e.Resource, e.ID)
}

// NotFound creates a not found error
func NotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// UnauthenticatedError is returned when no valid caller identity is present.
type UnauthenticatedError struct {
	Message string `json:"message"`
}

func (e *UnauthenticatedError) Error() string {
	return e.Message
}

// Unauthenticated creates an authentication error
func Unauthenticated(message string) *UnauthenticatedError {
	return &UnauthenticatedError{Message: message}
}

// IsValidation reports whether err is or wraps a ValidationError
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsForbidden reports whether err is or wraps an AuthorizationError
func IsForbidden(err error) bool {
	var target *AuthorizationError
	return errors.As(err, &target)
}

// IsConflict reports whether err is or wraps a ConflictError
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is or wraps a NotFoundError
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsUnauthenticated reports whether err is or wraps an UnauthenticatedError
func IsUnauthenticated(err error) bool {
	var target *UnauthenticatedError
	return errors.As(err, &target)
}

// Classify maps an error to its HTTP status and code. Anything outside the
// taxonomy is an internal error.
func Classify(err error) (int, Code) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case IsUnauthenticated(err):
		return http.StatusUnauthorized, CodeUnauthorized
	case IsValidation(err):
		return http.StatusBadRequest, CodeValidation
	case IsForbidden(err):
		return http.StatusForbidden, CodeForbidden
	case IsConflict(err):
		return http.StatusConflict, CodeConflict
	case IsNotFound(err):
		return http.StatusNotFound, CodeNotFound
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}
