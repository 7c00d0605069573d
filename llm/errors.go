package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// UnknownErrorMessage is substituted when a flat error envelope has no error key.
const UnknownErrorMessage = "Unknown error"

// ErrorResponse is the normalized body of a failed call.
type ErrorResponse struct {
	// Message is always set.
	Message string `json:"message"`
	// ErrorType is the provider's machine-readable classification, if any.
	ErrorType string `json:"error_type,omitempty"`
	// Type is the provider's envelope discriminator (e.g. "error"), if any.
	Type string `json:"type,omitempty"`
	// Code is the provider's error code, if any (OpenAI).
	Code       string          `json:"code,omitempty"`
	StatusCode int             `json:"status_code"`
	Raw        json.RawMessage `json:"-"`
}

// ErrorKind represents the category of a failed call.
type ErrorKind string

const (
	ErrorKindTransport         ErrorKind = "transport"
	ErrorKindCanceled          ErrorKind = "canceled"
	ErrorKindAPI               ErrorKind = "api"
	ErrorKindMalformedResponse ErrorKind = "malformed_response"
	ErrorKindUnknown           ErrorKind = "unknown"
)

// APIError is returned when the provider answered with a non-2xx status.
type APIError struct {
	Provider Provider
	Response *ErrorResponse
	msg      string
}

// NewAPIError wraps resp with the composed message.
func NewAPIError(p Provider, resp *ErrorResponse) *APIError {
	return &APIError{
		Provider: p,
		Response: resp,
		msg:      "API request failed: " + resp.Message,
	}
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.msg
}

// StatusCode returns the HTTP status of the failed call.
func (e *APIError) StatusCode() int {
	return e.Response.StatusCode
}

// TransportError is returned when no HTTP status was obtained.
type TransportError struct {
	Provider Provider
	Path     string
	Err      error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Canceled() {
		return fmt.Sprintf("%s request to %q canceled: %v", e.Provider, e.Path, e.Err)
	}
	return fmt.Sprintf("%s request to %q failed: %v", e.Provider, e.Path, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Canceled reports whether the call was abandoned through its context.
func (e *TransportError) Canceled() bool {
	return errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded)
}

// MalformedResponseError is returned when a body violates the provider contract,
// e.g. a success body without an id or an error envelope without a message.
type MalformedResponseError struct {
	Provider   Provider
	Field      string
	StatusCode int
	Body       json.RawMessage
	Err        error
}

// Error implements the error interface.
func (e *MalformedResponseError) Error() string {
	switch {
	case e.Field != "" && e.Err != nil:
		return fmt.Sprintf("malformed %s response (status %d): field %q: %v", e.Provider, e.StatusCode, e.Field, e.Err)
	case e.Field != "":
		return fmt.Sprintf("malformed %s response (status %d): missing field %q", e.Provider, e.StatusCode, e.Field)
	case e.Err != nil:
		return fmt.Sprintf("malformed %s response (status %d): %v", e.Provider, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("malformed %s response (status %d)", e.Provider, e.StatusCode)
	}
}

// Unwrap returns the underlying decode error, if any.
func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// AsAPIError extracts an *APIError from err.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsAPIError checks if an error is an API error.
func IsAPIError(err error) bool {
	_, ok := AsAPIError(err)
	return ok
}

// IsTransportError checks if an error is a transport failure, canceled or not.
func IsTransportError(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr)
}

// IsCanceled checks if an error is a transport failure caused by context cancellation.
func IsCanceled(err error) bool {
	var tErr *TransportError
	if errors.As(err, &tErr) {
		return tErr.Canceled()
	}
	return false
}

// IsMalformedResponse checks if an error is a provider contract violation.
func IsMalformedResponse(err error) bool {
	var mErr *MalformedResponseError
	return errors.As(err, &mErr)
}

// KindOf classifies err.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case IsCanceled(err):
		return ErrorKindCanceled
	case IsTransportError(err):
		return ErrorKindTransport
	case IsAPIError(err):
		return ErrorKindAPI
	case IsMalformedResponse(err):
		return ErrorKindMalformedResponse
	default:
		return ErrorKindUnknown
	}
}

// IsRetryableError reports whether a caller could reasonably retry the call.
// The client itself never retries.
func IsRetryableError(err error) bool {
	if apiErr, ok := AsAPIError(err); ok {
		return IsRetryableStatus(apiErr.StatusCode())
	}
	return IsTransportError(err) && !IsCanceled(err)
}

// IsRetryableStatus reports whether an HTTP status signals a transient failure.
func IsRetryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		529: // Anthropic "overloaded"
		return true
	default:
		return false
	}
}
