package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrConcurrencyConflict = errors.New("the record was modified by another request")
	ErrValidation          = errors.New("validation failed")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidState        = errors.New("invalid state")
	ErrPaymentFailed       = errors.New("payment failed")
)

// ValidationError carries field-level messages. It matches ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError returns a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Add records another field message.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
}

// OrNil returns nil when no field failed.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NotFound wraps ErrNotFound with the entity name and key.
func NotFound(entity string, key any) error {
	return fmt.Errorf("%s %v: %w", entity, key, ErrNotFound)
}

// AlreadyExists wraps ErrAlreadyExists with the conflicting field.
func AlreadyExists(entity, field string, value any) error {
	return fmt.Errorf("%s with %s '%v' %w", entity, field, value, ErrAlreadyExists)
}

// PaymentError is a provider failure translated into a domain code.
type PaymentError struct {
	Code    string
	Message string
	Err     error
}

func (e *PaymentError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("payment failed: %s", e.Code)
	}
	return fmt.Sprintf("payment failed: %s: %s", e.Code, e.Message)
}

// Is makes errors.Is(err, ErrPaymentFailed) hold for every PaymentError.
func (e *PaymentError) Is(target error) bool {
	return target == ErrPaymentFailed
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}
