package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidInput marks caller input that was rejected before any store or upstream call.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError describes one rejected field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ValidationErrors collects several field failures.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, ve := range e {
		msgs = append(msgs, ve.Error())
	}
	return strings.Join(msgs, "; ")
}

func (e ValidationErrors) Unwrap() error {
	return ErrInvalidInput
}

// Validator accumulates field errors.
type Validator struct {
	errs ValidationErrors
}

// NewValidator creates an empty validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Add records a failure for field.
func (v *Validator) Add(field, message string) {
	v.errs = append(v.errs, NewValidationError(field, message))
}

// Err returns nil when nothing was recorded, the single error when one was, or all of them.
func (v *Validator) Err() error {
	switch len(v.errs) {
	case 0:
		return nil
	case 1:
		return v.errs[0]
	default:
		return v.errs
	}
}
