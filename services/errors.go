package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeUnauthorized   ErrorType = "unauthorized"
	ErrorTypeForbidden      ErrorType = "forbidden"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeNotConfigured  ErrorType = "not_configured"
	ErrorTypeInternal       ErrorType = "internal"
	ErrorTypeExternal       ErrorType = "external"
	ErrorTypePartialFailure ErrorType = "partial_failure"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Sentinels are compared by type with errors.Is. Do not call WithDetail on
// them; build a fresh error with NewDomainError instead.
var (
	ErrInvalidInput        = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrMissingParameters   = NewDomainError(ErrorTypeValidation, "Missing parameters", nil)
	ErrInvalidCursor       = NewDomainError(ErrorTypeValidation, "invalid cursor", nil)
	ErrMissingTitle        = NewDomainError(ErrorTypeValidation, "Missing title", nil)
	ErrMissingSubscription = NewDomainError(ErrorTypeValidation, "Missing subscription", nil)

	ErrUnauthorized = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrMissingToken = NewDomainError(ErrorTypeUnauthorized, "Missing access token", nil)
	ErrInvalidToken = NewDomainError(ErrorTypeUnauthorized, "Invalid token", nil)

	ErrForbidden = NewDomainError(ErrorTypeForbidden, "Forbidden: admin role required", nil)

	ErrRateLimitExceeded = NewDomainError(ErrorTypeRateLimit, "Too Many Requests", nil)

	ErrNotConfigured = NewDomainError(ErrorTypeNotConfigured, "backend not configured", nil)

	ErrInternal      = NewDomainError(ErrorTypeInternal, "internal server error", nil)
	ErrDatabaseError = NewDomainError(ErrorTypeInternal, "database error", nil)

	ErrUpstream = NewDomainError(ErrorTypeExternal, "upstream service error", nil)

	ErrPartialFailure = NewDomainError(ErrorTypePartialFailure, "audit log write failed", nil)
)

// Error type checking helper functions

func isType(err error, errType ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == errType
	}
	return false
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	return isType(err, ErrorTypeUnauthorized)
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return isType(err, ErrorTypeForbidden)
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	return isType(err, ErrorTypeRateLimit)
}

// IsNotConfiguredError checks if an error reports missing deploy-time configuration
func IsNotConfiguredError(err error) bool {
	return isType(err, ErrorTypeNotConfigured)
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return isType(err, ErrorTypeInternal)
}

// IsExternalError checks if an error is an upstream service error
func IsExternalError(err error) bool {
	return isType(err, ErrorTypeExternal)
}

// IsPartialFailure checks if an error is a partial failure
func IsPartialFailure(err error) bool {
	return isType(err, ErrorTypePartialFailure)
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorMessage returns the client-safe message of a domain error.
// Wrapped backend errors are never part of it.
func GetErrorMessage(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapUnauthorized wraps a credential failure
func WrapUnauthorized(message string, err error) error {
	return NewDomainError(ErrorTypeUnauthorized, message, err)
}

// WrapExternal wraps an upstream failure, keeping the upstream status and body
func WrapExternal(message string, status int, body string, err error) error {
	return NewDomainError(ErrorTypeExternal, message, err).
		WithDetail("status", status).
		WithDetail("detail", body)
}
