// Package apperr defines the structured error taxonomy shared by the
// memory engine: validation, not-found, provider, and storage failures.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies an error for propagation decisions.
type Code string

const (
	// CodeValidation indicates invalid caller input (empty user id, empty text).
	CodeValidation Code = "VALIDATION"
	// CodeNotFound indicates the target memory is missing or already deleted.
	CodeNotFound Code = "NOT_FOUND"
	// CodeProvider indicates an embedding or text-generation backend failure.
	CodeProvider Code = "PROVIDER"
	// CodeStorage indicates an underlying store-engine failure.
	CodeStorage Code = "STORAGE"
)

// Error is a classified error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Validation builds a VALIDATION error.
func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a NOT_FOUND error.
func NotFound(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Provider builds a PROVIDER error wrapping cause.
func Provider(cause error, format string, args ...any) *Error {
	return &Error{Code: CodeProvider, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Storage builds a STORAGE error wrapping cause.
func Storage(cause error, format string, args ...any) *Error {
	return &Error{Code: CodeStorage, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// CodeOf returns the code of err, or "" for unclassified errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsValidation reports whether err is classified VALIDATION.
func IsValidation(err error) bool { return CodeOf(err) == CodeValidation }

// IsNotFound reports whether err is classified NOT_FOUND.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsProvider reports whether err is classified PROVIDER.
func IsProvider(err error) bool { return CodeOf(err) == CodeProvider }

// IsStorage reports whether err is classified STORAGE.
func IsStorage(err error) bool { return CodeOf(err) == CodeStorage }
