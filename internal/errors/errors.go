package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of authentication error.
type ErrorCode string

const (
	// ErrCodeConnection indicates the directory could not be reached or the transport failed.
	ErrCodeConnection ErrorCode = "connection"
	// ErrCodeWrongCredentials indicates the directory rejected the bind.
	ErrCodeWrongCredentials ErrorCode = "wrong_credentials"
	// ErrCodeNotFound indicates the bind succeeded but no matching directory entry exists.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeToken indicates a cookie token was malformed, unsigned, tampered with, or expired.
	ErrCodeToken ErrorCode = "token"
	// ErrCodeValidation indicates invalid input or configuration.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeInternal indicates an unexpected internal failure.
	ErrCodeInternal ErrorCode = "internal"
)

// AppError represents a structured error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError carrying the same code.
// This lets the sentinel values below match any wrapped error of the same kind.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Cause == nil && t.Field == ""
}

// Sentinel kinds. Compare with errors.Is.
var (
	ErrConnection       = &AppError{Code: ErrCodeConnection, Message: "directory connection failed"}
	ErrWrongCredentials = &AppError{Code: ErrCodeWrongCredentials, Message: "wrong credentials"}
	ErrNotFound         = &AppError{Code: ErrCodeNotFound, Message: "no directory entry found"}
	ErrToken            = &AppError{Code: ErrCodeToken, Message: "invalid token"}
	ErrInvalidEntry     = &AppError{Code: ErrCodeValidation, Message: "invalid directory entry"}
)

// Connection creates a new Connection error wrapping the transport failure.
func Connection(cause error) *AppError {
	return Wrap(cause, ErrCodeConnection, "directory connection failed")
}

// WrongCredentials creates a new WrongCredentials error.
func WrongCredentials(cause error) *AppError {
	return &AppError{
		Code:    ErrCodeWrongCredentials,
		Message: "wrong credentials",
		Cause:   cause,
	}
}

// NotFoundf creates a new NotFound error with formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf(format, args...),
	}
}

// Tokenf creates a new Token error with formatted message.
func Tokenf(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeToken,
		Message: fmt.Sprintf(format, args...),
	}
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
		Field:   field,
	}
}

// Internalf creates a new Internal error with formatted message.
func Internalf(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// isCode checks if an error has a specific error code anywhere in its chain.
func isCode(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// IsConnection checks if an error is a Connection error.
func IsConnection(err error) bool {
	return isCode(err, ErrCodeConnection)
}

// IsWrongCredentials checks if an error is a WrongCredentials error.
func IsWrongCredentials(err error) bool {
	return isCode(err, ErrCodeWrongCredentials)
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool {
	return isCode(err, ErrCodeNotFound)
}

// IsToken checks if an error is a Token error.
func IsToken(err error) bool {
	return isCode(err, ErrCodeToken)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

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
