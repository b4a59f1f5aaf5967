package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for the reconciliation engine. Typed errors below match
// these through errors.Is.
var (
	ErrValidation              = errors.New("validation failed")
	ErrNotFound                = errors.New("not found")
	ErrConflict                = errors.New("conflict")
	ErrAdjudicationUnavailable = errors.New("adjudication unavailable")
	ErrExternalWrite           = errors.New("external write failed")
)

// ValidationError reports malformed candidate or decision input.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// NotFoundError reports an unknown candidate or session id.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConflictError reports a transition attempted on a candidate that already left
// pending, or a second seal of a session.
type ConflictError struct {
	Resource string
	ID       string
	Current  string
	Message  string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %s", e.Resource, e.ID, e.Message)
	}
	return fmt.Sprintf("%s %s is %s, expected pending", e.Resource, e.ID, e.Current)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func NewConflictError(resource, id, current string) *ConflictError {
	return &ConflictError{Resource: resource, ID: id, Current: current}
}

// NewDuplicateError reports an insert of an id that already exists.
func NewDuplicateError(resource, id string) *ConflictError {
	return &ConflictError{Resource: resource, ID: id, Message: "already exists"}
}

// ExternalWriteError wraps a CRM write failure during approval.
type ExternalWriteError struct {
	Identifier string
	Err        error
}

func (e *ExternalWriteError) Error() string {
	return fmt.Sprintf("crm update for %s failed: %v", e.Identifier, e.Err)
}

func (e *ExternalWriteError) Unwrap() error {
	return e.Err
}

func (e *ExternalWriteError) Is(target error) bool {
	return target == ErrExternalWrite
}
