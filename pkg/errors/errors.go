// Package errors provides structured error types for evdisplay.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, the TUI and the HTTP viewer
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// The viewer-specific codes map one-to-one onto the failure classes of the
// display core:
//   - GEOMETRY_LOAD: bad or missing geometry description, no top node
//   - GEOMETRY_EXTRACT: missing or corrupt display-geometry extract
//   - DATA_SOURCE: unopenable event source, missing table or fields
//   - EVENT_RANGE: navigation or selection outside the known event ids
//
// The remaining codes (INVALID_*, INTERNAL_ERROR, UNSUPPORTED) cover input
// validation and unexpected conditions.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeEventRange, "event %d is not in the index", id)
//	if errors.Is(err, errors.ErrCodeEventRange) {
//	    // Handle navigation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeGeometryLoad, origErr, "parse %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Display core errors
	ErrCodeGeometryLoad    Code = "GEOMETRY_LOAD"
	ErrCodeGeometryExtract Code = "GEOMETRY_EXTRACT"
	ErrCodeDataSource      Code = "DATA_SOURCE"
	ErrCodeEventRange      Code = "EVENT_RANGE"

	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidView   Code = "INVALID_VIEW"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"

	// Resource errors
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
// The outermost *Error decides; codes of wrapped causes are not consulted.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// HTTPStatus maps an error code onto the status used by the HTTP viewer.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case ErrCodeEventRange, ErrCodeFileNotFound:
		return 404
	case ErrCodeInvalidInput, ErrCodeInvalidConfig, ErrCodeInvalidView, ErrCodeInvalidFormat:
		return 400
	case ErrCodeUnsupported:
		return 501
	case ErrCodeDataSource, ErrCodeGeometryLoad, ErrCodeGeometryExtract:
		return 422
	default:
		return 500
	}
}
