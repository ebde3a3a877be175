// Package errors defines the structured application error used across services and handlers.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict indicates the write lost a race or collides with existing data.
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeForeignKey indicates a foreign key constraint violation.
	ErrCodeForeignKey ErrorCode = "foreign_key"
	// ErrCodeInvalidTransition indicates a job status change the state machine does not allow.
	ErrCodeInvalidTransition ErrorCode = "invalid_transition"
	// ErrCodeEmptyResult indicates a result payload in which no material change was usable.
	ErrCodeEmptyResult ErrorCode = "empty_result"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	// Field is the offending input field, for validation errors.
	Field string
	// Details carries a structured payload for the client (e.g. the attempted transition).
	Details any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates an AppError with the given code.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// NotFoundf creates a NotFound error with a formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf(format, args...))
}

// Conflictf creates a Conflict error with a formatted message.
func Conflictf(format string, args ...any) *AppError {
	return New(ErrCodeConflict, fmt.Sprintf(format, args...))
}

// Validationf creates a Validation error with a formatted message.
func Validationf(format string, args ...any) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf(format, args...))
}

// ValidationField creates a Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

// Wrap wraps err with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf wraps err with an AppError and a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// WithDetails returns a copy of e carrying details.
func (e *AppError) WithDetails(details any) *AppError {
	out := *e
	out.Details = details
	return &out
}

func isCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool { return isCode(err, ErrCodeNotFound) }

// IsConflict checks if an error is a Conflict error.
func IsConflict(err error) bool { return isCode(err, ErrCodeConflict) }

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool { return isCode(err, ErrCodeValidation) }

// IsInvalidTransition checks if an error is an InvalidTransition error.
func IsInvalidTransition(err error) bool { return isCode(err, ErrCodeInvalidTransition) }

// IsEmptyResult checks if an error is an EmptyResult error.
func IsEmptyResult(err error) bool { return isCode(err, ErrCodeEmptyResult) }

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

// HTTPStatus maps an error code to the response status used by the API.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict, ErrCodeInvalidTransition:
		return http.StatusConflict
	case ErrCodeValidation, ErrCodeForeignKey:
		return http.StatusBadRequest
	case ErrCodeEmptyResult:
		return http.StatusUnprocessableEntity
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeCanceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}
