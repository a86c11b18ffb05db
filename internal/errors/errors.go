package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeUsage      ErrorType = "usage"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeProcessing ErrorType = "processing"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// ExitCode maps the error category to a process exit status.
func (e *AppError) ExitCode() int {
	switch e.Type {
	case ErrorTypeUsage:
		return 1
	case ErrorTypeIO:
		return 2
	default:
		return 3
	}
}

// NewUsageError creates a new usage error
func NewUsageError(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeUsage, Message: message, Cause: cause}
}

// NewIOError creates a new I/O error
func NewIOError(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeIO, Message: message, Cause: cause}
}

// NewProcessingError creates a new processing error
func NewProcessingError(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeProcessing, Message: message, Cause: cause}
}

// IsUsage reports whether err carries a usage error.
func IsUsage(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == ErrorTypeUsage
}

// ExitCode returns the exit status for err; 0 for nil and 3 for untyped errors.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.ExitCode()
	}
	return 3
}
