package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of error. It is the machine-readable tag
// rendered to clients, so callers can prompt for input on the key-related types.
type ErrorType string

const (
	// ErrorTypeValidation represents validation errors (4xx)
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeAuthentication represents authentication errors (401)
	ErrorTypeAuthentication ErrorType = "authentication"
	// ErrorTypeNotFound represents resource not found errors (404)
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeConfig represents misconfigured endpoints (500)
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeNoUserKey means a user-provided API key is expected but not stored
	ErrorTypeNoUserKey ErrorType = "no_user_key"
	// ErrorTypeNoBaseURL means a user-provided base URL is expected but not stored
	ErrorTypeNoBaseURL ErrorType = "no_base_url"
	// ErrorTypeExpiredUserKey means the user's stored credential has expired
	ErrorTypeExpiredUserKey ErrorType = "expired_user_key"
	// ErrorTypeProvider represents provider-specific errors (502)
	ErrorTypeProvider ErrorType = "provider"
	// ErrorTypeTimeout represents timeout errors (504)
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeInternal represents internal server errors (500)
	ErrorTypeInternal ErrorType = "internal"
)

// Error codes identify the resolution failure kind independently of the message.
const (
	CodeConfigNotFound            = "CONFIG_NOT_FOUND"
	CodeEndpointNotFound          = "ENDPOINT_NOT_FOUND"
	CodeMissingCredentialTemplate = "MISSING_CREDENTIAL_TEMPLATE"
	CodeUserLookupFailed          = "USER_LOOKUP_FAILED"
	CodeCredentialExpired         = "CREDENTIAL_EXPIRED"
	CodeMissingUserKey            = "MISSING_USER_KEY"
	CodeMissingBaseURL            = "MISSING_BASE_URL"
	CodeCredentialNotConfigured   = "CREDENTIAL_NOT_CONFIGURED"
	CodeModelFetchFailed          = "MODEL_FETCH_FAILED"
)

// Sentinels for errors.Is; matching compares Code only.
var (
	ErrConfigNotFound            = &AppError{Code: CodeConfigNotFound}
	ErrEndpointNotFound          = &AppError{Code: CodeEndpointNotFound}
	ErrMissingCredentialTemplate = &AppError{Code: CodeMissingCredentialTemplate}
	ErrUserLookupFailed          = &AppError{Code: CodeUserLookupFailed}
	ErrCredentialExpired         = &AppError{Code: CodeCredentialExpired}
	ErrMissingUserKey            = &AppError{Code: CodeMissingUserKey}
	ErrMissingBaseURL            = &AppError{Code: CodeMissingBaseURL}
	ErrCredentialNotConfigured   = &AppError{Code: CodeCredentialNotConfigured}
	ErrModelFetchFailed          = &AppError{Code: CodeModelFetchFailed}
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Code       string    `json:"code,omitzero"`
	StatusCode int       `json:"-"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap allows error unwrapping
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another *AppError with the same non-empty Code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok || t.Code == "" {
		return false
	}
	return e.Code == t.Code
}

// IsRetryable returns whether the error is retryable
func (e *AppError) IsRetryable() bool {
	return e.Retryable
}

// GetStatusCode returns the HTTP status code for the error
func (e *AppError) GetStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeValidation, ErrorTypeNoUserKey, ErrorTypeNoBaseURL:
		return http.StatusBadRequest
	case ErrorTypeAuthentication, ErrorTypeExpiredUserKey:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeProvider:
		return http.StatusBadGateway
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// NewProviderError creates a provider error
func NewProviderError(provider, message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeProvider,
		Message:    fmt.Sprintf("provider %s error: %s", provider, message),
		Code:       "PROVIDER_ERROR",
		StatusCode: http.StatusBadGateway,
		Retryable:  true,
		Cause:      cause,
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewConfigNotFoundError reports that no custom config could be loaded.
func NewConfigNotFoundError(endpoint string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: fmt.Sprintf("config not found for the %s custom endpoint", endpoint),
		Code:    CodeConfigNotFound,
	}
}

// NewEndpointNotFoundError reports an endpoint name missing from endpoints.custom.
func NewEndpointNotFoundError(endpoint string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: fmt.Sprintf("custom endpoint %s is not configured", endpoint),
		Code:    CodeEndpointNotFound,
	}
}

// NewMissingCredentialTemplateError reports an api_key or base_url whose
// environment placeholder did not resolve. field is "API key" or "base URL".
func NewMissingCredentialTemplateError(endpoint, field string) *AppError {
	return &AppError{
		Type:    ErrorTypeConfig,
		Message: fmt.Sprintf("missing %s for %s", field, endpoint),
		Code:    CodeMissingCredentialTemplate,
	}
}

// NewUserLookupError reports a failed identity substitution for a header.
func NewUserLookupError(header string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeProvider,
		Message:    fmt.Sprintf("failed to resolve user identity for header %s", header),
		Code:       CodeUserLookupFailed,
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

// NewCredentialExpiredError reports an expired user-provided credential.
func NewCredentialExpiredError(endpoint string) *AppError {
	return &AppError{
		Type:    ErrorTypeExpiredUserKey,
		Message: fmt.Sprintf("your %s API key has expired, please provide a new key", endpoint),
		Code:    CodeCredentialExpired,
	}
}

// NewMissingUserKeyError reports that a user-provided API key is not stored.
func NewMissingUserKeyError(endpoint string) *AppError {
	return &AppError{
		Type:    ErrorTypeNoUserKey,
		Message: fmt.Sprintf("no API key stored for %s", endpoint),
		Code:    CodeMissingUserKey,
	}
}

// NewMissingBaseURLError reports that a user-provided base URL is not stored.
func NewMissingBaseURLError(endpoint string) *AppError {
	return &AppError{
		Type:    ErrorTypeNoBaseURL,
		Message: fmt.Sprintf("no base URL stored for %s", endpoint),
		Code:    CodeMissingBaseURL,
	}
}

// NewCredentialNotConfiguredError reports an empty API key or base URL after resolution.
func NewCredentialNotConfiguredError(endpoint, field string) *AppError {
	return &AppError{
		Type:    ErrorTypeConfig,
		Message: fmt.Sprintf("%s %s not provided", endpoint, field),
		Code:    CodeCredentialNotConfigured,
	}
}

// NewModelFetchError reports a failed model/token metadata fetch.
func NewModelFetchError(endpoint string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeProvider,
		Message:    fmt.Sprintf("failed to fetch models for %s", endpoint),
		Code:       CodeModelFetchFailed,
		StatusCode: http.StatusBadGateway,
		Retryable:  true,
		Cause:      cause,
	}
}

// SanitizeError sanitizes an error for external consumption
func SanitizeError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Type:       appErr.Type,
			Message:    appErr.Message,
			Code:       appErr.Code,
			StatusCode: appErr.GetStatusCode(),
			Retryable:  appErr.Retryable,
		}
	}

	return NewInternalError("an unexpected error occurred", err)
}
