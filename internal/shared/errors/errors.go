package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies application errors across all layers
type ErrorType string

const (
	ErrorTypeValidation      ErrorType = "VALIDATION_ERROR"
	ErrorTypeUnauthenticated ErrorType = "UNAUTHENTICATED"
	ErrorTypeAuthorization   ErrorType = "AUTHORIZATION_ERROR"
	ErrorTypeNotFound        ErrorType = "NOT_FOUND"
	ErrorTypeConflict        ErrorType = "CONFLICT_ERROR"
	ErrorTypeTransport       ErrorType = "TRANSPORT_ERROR"
	ErrorTypeInternal        ErrorType = "INTERNAL_ERROR"
)

// Common application errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrSessionExpired     = errors.New("session expired")
)

// Bookmark-specific errors
var (
	ErrBookmarkNotFound = errors.New("bookmark not found")
	ErrEmptyTitle       = errors.New("title must not be empty")
	ErrInvalidURL       = errors.New("invalid url")
	ErrPolicyViolation  = errors.New("row policy violation")
)

// AppError represents a typed application error with context
type AppError struct {
	Type      ErrorType              `json:"type"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	HTTPCode  int                    `json:"-"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Component string                 `json:"component,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error
func NewAppError(errorType ErrorType, message string, httpCode int) *AppError {
	return &AppError{
		Type:     errorType,
		Message:  message,
		HTTPCode: httpCode,
		Details:  make(map[string]interface{}),
	}
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithCause adds the underlying cause
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithComponent adds the component name
func (e *AppError) WithComponent(component string) *AppError {
	e.Component = component
	return e
}

// WithDetail adds a detail field
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Common error constructors

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return NewAppError(ErrorTypeValidation, message, http.StatusBadRequest)
}

// NewUnauthenticatedError creates an error for requests without a valid session
func NewUnauthenticatedError(message string) *AppError {
	return NewAppError(ErrorTypeUnauthenticated, message, http.StatusUnauthorized)
}

// NewAuthorizationError creates an error for operations on rows the caller does not own
func NewAuthorizationError(message string) *AppError {
	return NewAppError(ErrorTypeAuthorization, message, http.StatusForbidden)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return NewAppError(ErrorTypeConflict, message, http.StatusConflict)
}

// NewTransportError creates an error for network and upstream failures
func NewTransportError(message string) *AppError {
	return NewAppError(ErrorTypeTransport, message, http.StatusBadGateway)
}

// NewInternalError creates an internal server error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, message, http.StatusInternalServerError)
}

// FromHTTPStatus maps an HTTP response status to a typed application error.
// Adapters use it to translate backend responses; 5xx and unknown statuses
// become transport errors.
func FromHTTPStatus(status int, message string) *AppError {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return NewValidationError(message)
	case http.StatusUnauthorized:
		return NewUnauthenticatedError(message)
	case http.StatusForbidden:
		return NewAuthorizationError(message)
	case http.StatusNotFound:
		return NewAppError(ErrorTypeNotFound, message, http.StatusNotFound)
	case http.StatusConflict:
		return NewConflictError(message)
	default:
		return NewTransportError(message).WithDetail("status", status)
	}
}

// WrapError wraps an error with context, preserving an existing AppError
func WrapError(err error, message string) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError(message).WithCause(err)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == ErrorTypeValidation
	}
	return errors.Is(err, ErrEmptyTitle) || errors.Is(err, ErrInvalidURL)
}

// IsUnauthenticated checks if an error means the caller has no valid session
func IsUnauthenticated(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == ErrorTypeUnauthenticated
	}
	return errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenExpired)
}

// IsAuthorization checks if an error is an authorization error
func IsAuthorization(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == ErrorTypeAuthorization
	}
	return errors.Is(err, ErrForbidden) || errors.Is(err, ErrPolicyViolation)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == ErrorTypeNotFound
	}
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrBookmarkNotFound) || errors.Is(err, ErrUserNotFound)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == ErrorTypeConflict
	}
	return errors.Is(err, ErrEmailTaken)
}

// IsTransport checks if an error is a transport error
func IsTransport(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == ErrorTypeTransport
	}
	return false
}
