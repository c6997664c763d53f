package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a specific type of error in the domain
type ErrorCode string

const (
	// Common errors
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"

	// Test store specific errors
	ErrRemoteStore     ErrorCode = "REMOTE_STORE_ERROR"
	ErrHydrationFailed ErrorCode = "HYDRATION_FAILED"
	ErrValidation      ErrorCode = "VALIDATION_ERROR"
)

// ErrRecordNotFound is returned by remote tables when a filter matched no rows.
var ErrRecordNotFound = errors.New("record not found")

// DomainError represents a domain-specific error
type DomainError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements the json.Marshaler interface
func (e *DomainError) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{
		Code:    string(e.Code),
		Message: e.Message,
	})
}

// NewError creates a new DomainError
func NewError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewNotFoundError(message string) *DomainError {
	return NewError(ErrNotFound, message, nil)
}

func NewInvalidInputError(message string) *DomainError {
	return NewError(ErrInvalidInput, message, nil)
}

func NewInternalError(message string, err error) *DomainError {
	return NewError(ErrInternal, message, err)
}

func NewTestNotFoundError(id string) *DomainError {
	return NewError(ErrNotFound, fmt.Sprintf("Test not found with ID: %s", id), nil)
}

// NewRemoteStoreError wraps a failed remote write. A remote not-found is
// reported as ErrNotFound so callers can tell the two apart.
func NewRemoteStoreError(op string, err error) *DomainError {
	if errors.Is(err, ErrRecordNotFound) {
		return NewError(ErrNotFound, fmt.Sprintf("%s: no matching test", op), err)
	}
	return NewError(ErrRemoteStore, fmt.Sprintf("%s failed", op), err)
}

func NewHydrationError(err error) *DomainError {
	return NewError(ErrHydrationFailed, "failed to load tests from remote store", err)
}

// CodeOf returns the ErrorCode carried by err, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ErrInternal
}

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every invalid field of a request.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

func NewMissingFieldError(field string) ValidationError {
	return ValidationError{Field: field, Message: "is required"}
}

func NewInvalidValueError(field string, value any) ValidationError {
	return ValidationError{Field: field, Message: fmt.Sprintf("invalid value: %v", value)}
}

func NewOutOfRangeError(field string, value, min, max int) ValidationError {
	return ValidationError{Field: field, Message: fmt.Sprintf("value %d out of range [%d, %d]", value, min, max)}
}
