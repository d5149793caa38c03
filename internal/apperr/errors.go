// Package apperr holds the error taxonomy shared by the stores and the API layer.
package apperr

import "errors"

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateID indicates an id already in use by another live record.
var ErrDuplicateID = errors.New("duplicate id")

// ValidationError represents a bad-request condition (HTTP 400).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError represents a conflict condition (HTTP 409).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// Invalid is shorthand for returning a *ValidationError.
func Invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// Conflict is shorthand for returning a *ConflictError.
func Conflict(msg string) error {
	return &ConflictError{Message: msg}
}
