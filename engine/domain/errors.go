package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the engine.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrUnsupportedFile   = errors.New("only PDF files are supported")
	ErrEmptyQuestion     = errors.New("empty question")
	ErrQuestionTooLong   = errors.New("question too long")
	ErrEmbedding         = errors.New("embedding failed")
	ErrNoText            = errors.New("No text found in PDF")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
