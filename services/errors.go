package services

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrValidation marks malformed or missing input. No write has happened.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned for unknown requirement, payment, event, attendee, user or ticket ids.
	ErrNotFound = errors.New("record not found")
	// ErrForbidden is returned when the caller may not see or change a record.
	ErrForbidden = errors.New("forbidden")

	// Conflict kinds, wrapped by ConflictError.
	ErrAlreadyRegistered       = errors.New("already registered")
	ErrEventFull               = errors.New("event is full")
	ErrCapacityBelowRegistered = errors.New("capacity below registered count")
)

// ValidationError carries one message per offending field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.Fields[k])
	}
	return strings.Join(parts, " ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Add records a message for field, keeping the first one.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = message
	}
}

// OrNil returns nil when nothing was recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, message string) *ValidationError {
	e := &ValidationError{}
	e.Add(field, message)
	return e
}

// ConflictError is a rejected state transition with a human-readable reason.
type ConflictError struct {
	Kind    error
	Message string
}

func (e *ConflictError) Error() string { return e.Message }
func (e *ConflictError) Unwrap() error { return e.Kind }

func conflict(kind error, message string) *ConflictError {
	return &ConflictError{Kind: kind, Message: message}
}
