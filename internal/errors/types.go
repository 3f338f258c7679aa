package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeLibrary    ErrorType = "library"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeSecurity   ErrorType = "security"
	ErrorTypeInternal   ErrorType = "internal"
)

// JahError is a structured error type with context.
type JahError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	FilePath    string
	Recoverable bool
}

// Error implements the error interface.
func (e *JahError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *JahError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *JahError) Is(target error) bool {
	var t *JahError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *JahError) WithContext(key string, value interface{}) *JahError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithFile adds file location information.
func (e *JahError) WithFile(filePath string) *JahError {
	e.FilePath = filePath

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *JahError {
	return &JahError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewSecurityError creates a security error.
func NewSecurityError(code, message string) *JahError {
	return &JahError{
		Type:    ErrorTypeSecurity,
		Code:    code,
		Message: message,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *JahError {
	return &JahError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *JahError {
	return &JahError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var je *JahError
	if errors.As(err, &je) {
		return je.Recoverable
	}

	return false
}

// IsSecurityError checks if an error is security-related.
func IsSecurityError(err error) bool {
	var je *JahError
	if errors.As(err, &je) {
		return je.Type == ErrorTypeSecurity
	}

	return false
}

// Common error codes.
const (
	ErrCodeConfigParse     = "ERR_CONFIG_PARSE"
	ErrCodeConfigInvalid   = "ERR_CONFIG_INVALID"
	ErrCodeLibraryNotFound = "ERR_LIBRARY_NOT_FOUND"
	ErrCodeMountNotFound   = "ERR_MOUNT_NOT_FOUND"
	ErrCodeCopyFailed      = "ERR_COPY_FAILED"
	ErrCodeWriteFailed     = "ERR_WRITE_FAILED"
	ErrCodeReadFailed      = "ERR_READ_FAILED"
	ErrCodePathTraversal   = "ERR_PATH_TRAVERSAL"
	ErrCodeInvalidPath     = "ERR_INVALID_PATH"
)

// ErrPathTraversal creates a path traversal security error.
func ErrPathTraversal(path string) *JahError {
	return NewSecurityError(ErrCodePathTraversal, "path traversal attempt: "+path)
}

// ErrInvalidPath creates a path validation error.
func ErrInvalidPath(path string) *JahError {
	return NewValidationError(ErrCodeInvalidPath, "invalid path: "+path)
}
