package services

import (
	"errors"
	"fmt"
)

// Common service errors, matched by the API layer with errors.Is.
var (
	// ErrNotFound indicates the requested entity does not exist
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists indicates an entity with the same identifier already exists
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrInvalidInput indicates the request payload failed validation
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError represents a validation failure with field context
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a validation error for a specific field
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError checks whether err is a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
