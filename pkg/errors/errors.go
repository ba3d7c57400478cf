package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Domain errors
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"

	// Engine errors
	ErrorTypeAdapter   ErrorType = "ADAPTER"
	ErrorTypeMigration ErrorType = "MIGRATION"
	ErrorTypeInternal  ErrorType = "INTERNAL"

	// Infrastructure errors
	ErrorTypeStorage     ErrorType = "STORAGE"
	ErrorTypeRemote      ErrorType = "REMOTE"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Op      string                 `json:"op,omitempty"`
	Key     string                 `json:"key,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
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

// WithDetails adds error details
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// Constructor functions for common error types

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "no active user identity"
	}
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Message: message,
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
	}
}

// NewStorageError creates a storage error carrying the failed operation and key.
// Write paths propagate these; read paths log them and return empty values.
func NewStorageError(op, key string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeStorage,
		Message: fmt.Sprintf("storage operation '%s' failed for key '%s'", op, key),
		Op:      op,
		Key:     key,
		Cause:   err,
	}
}

// NewAdapterError creates an error for a single failing measurement source.
// Collection skips the source and continues; it never aborts the whole run.
func NewAdapterError(source string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeAdapter,
		Message: fmt.Sprintf("measurement source '%s' failed", source),
		Op:      source,
		Cause:   err,
	}
}

// NewRemoteError creates an error for a failed remote store call
func NewRemoteError(op string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeRemote,
		Message: fmt.Sprintf("remote operation '%s' failed", op),
		Op:      op,
		Cause:   err,
	}
}

// NewMigrationError creates an error for a failed schema migration
func NewMigrationError(version string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeMigration,
		Message: fmt.Sprintf("migration '%s' failed", version),
		Op:      version,
		Cause:   err,
	}
}

// NewUnavailableError creates a service unavailable error
func NewUnavailableError(service string) *AppError {
	return &AppError{
		Type:    ErrorTypeUnavailable,
		Message: fmt.Sprintf("service '%s' is unavailable", service),
	}
}

// Helper functions

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// IsUnauthorized checks if an error is an unauthorized error
func IsUnauthorized(err error) bool {
	return IsType(err, ErrorTypeUnauthorized)
}

// IsStorage checks if an error is a storage error
func IsStorage(err error) bool {
	return IsType(err, ErrorTypeStorage)
}

// IsAdapter checks if an error is a single-source adapter error
func IsAdapter(err error) bool {
	return IsType(err, ErrorTypeAdapter)
}

// IsRemote checks if an error is a remote store error
func IsRemote(err error) bool {
	return IsType(err, ErrorTypeRemote)
}

// IsMigration checks if an error is a migration error
func IsMigration(err error) bool {
	return IsType(err, ErrorTypeMigration)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, add context to message
	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}

	// Otherwise create a new internal error
	return NewInternalError(message).WithCause(err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
