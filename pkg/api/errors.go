package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType categorizes an API error for clients.
type ErrorType string

const (
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeUnauthorized    ErrorType = "unauthorized"
	ErrorTypeUpstreamTimeout ErrorType = "upstream_timeout"
	ErrorTypeUpstreamChanged ErrorType = "upstream_changed"
	ErrorTypeUnavailable     ErrorType = "unavailable"
	ErrorTypeServerError     ErrorType = "server_error"
)

// APIError is the structured error returned in every failure response body.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// HTTPStatus maps the error type to an HTTP status code.
func (e *APIError) HTTPStatus() int {
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case ErrorTypeUpstreamTimeout:
		return http.StatusGatewayTimeout
	case ErrorTypeUpstreamChanged:
		return http.StatusBadGateway
	case ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse wraps an APIError as the top-level error body.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewInvalidRequestError creates an APIError for a bad request parameter.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{Type: ErrorTypeInvalidRequest, Code: "invalid_request", Param: param, Message: message}
}

// NewUnauthorizedError creates an APIError for an expired or missing login.
func NewUnauthorizedError(message string) *APIError {
	return &APIError{Type: ErrorTypeUnauthorized, Code: "session_expired", Message: message}
}

// NewUpstreamTimeoutError creates an APIError for a reply that never stabilized.
func NewUpstreamTimeoutError(message string) *APIError {
	return &APIError{Type: ErrorTypeUpstreamTimeout, Code: "reply_timeout", Message: message}
}

// NewUpstreamChangedError creates an APIError for selector drift in the web UI.
func NewUpstreamChangedError(message string) *APIError {
	return &APIError{Type: ErrorTypeUpstreamChanged, Code: "ui_changed", Message: message}
}

// NewUnavailableError creates an APIError for a service that is not ready.
func NewUnavailableError(message string) *APIError {
	return &APIError{Type: ErrorTypeUnavailable, Code: "not_ready", Message: message}
}

// NewServerError creates an APIError for an internal failure.
func NewServerError(message string) *APIError {
	return &APIError{Type: ErrorTypeServerError, Code: "internal", Message: message}
}

// AsAPIError converts any error into an APIError, passing APIErrors through
// unchanged and wrapping everything else as a server error.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewServerError(err.Error())
}
