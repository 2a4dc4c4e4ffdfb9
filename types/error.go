package types

import (
	"errors"
	"fmt"
	"time"
)

// Kind is the top-level error taxonomy shared by every vendor client.
type Kind string

const (
	KindConfiguration     Kind = "configuration_error"
	KindUnsupportedVendor Kind = "unsupported_vendor_error"
	KindPrompt            Kind = "prompt_error"
	KindTokenLimit        Kind = "token_limit_error"
	KindTransport         Kind = "transport_error"
)

// Reason refines KindTransport. Other kinds leave it empty.
type Reason string

// Retryable transport reasons
const (
	ReasonTimeout     Reason = "timeout"
	ReasonRateLimit   Reason = "rate_limit"
	ReasonServerError Reason = "server_error"
	ReasonConnection  Reason = "connection"
)

// Fatal transport reasons
const (
	ReasonBadRequest        Reason = "bad_request"
	ReasonAuthFailure       Reason = "auth_failure"
	ReasonCanceled          Reason = "canceled"
	ReasonMalformedResponse Reason = "malformed_response"
	ReasonUnknown           Reason = "unknown"
)

// Retryable reports whether a transport failure with this reason may succeed on a later attempt.
func (r Reason) Retryable() bool {
	switch r {
	case ReasonTimeout, ReasonRateLimit, ReasonServerError, ReasonConnection:
		return true
	default:
		return false
	}
}

// ErrInvalidArgument marks caller programming errors raised synchronously
// by the entry points (ambiguous prompt/data, missing model and so on).
var ErrInvalidArgument = errors.New("invalid argument")

// Error represents a classified failure with kind, message, and transport metadata.
type Error struct {
	Kind       Kind          `json:"kind"`
	Reason     Reason        `json:"reason,omitempty"`
	Message    string        `json:"message"`
	HTTPStatus int           `json:"http_status,omitempty"`
	Retryable  bool          `json:"retryable"`
	Vendor     string        `json:"vendor,omitempty"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Cause      error         `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	label := string(e.Kind)
	if e.Reason != "" {
		label += "/" + string(e.Reason)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", label, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", label, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given kind and message.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NewTransportError creates a transport error; retryability follows the reason.
func NewTransportError(reason Reason, message string) *Error {
	return &Error{
		Kind:      KindTransport,
		Reason:    reason,
		Message:   message,
		Retryable: reason.Retryable(),
	}
}

// NewConfigurationError creates a configuration error.
func NewConfigurationError(format string, args ...any) *Error {
	return NewError(KindConfiguration, fmt.Sprintf(format, args...))
}

// NewUnsupportedVendorError creates an unsupported-vendor error for name.
func NewUnsupportedVendorError(name string) *Error {
	return NewError(KindUnsupportedVendor, fmt.Sprintf("unsupported vendor %q", name))
}

// NewPromptError creates a prompt error.
func NewPromptError(format string, args ...any) *Error {
	return NewError(KindPrompt, fmt.Sprintf(format, args...))
}

// NewTokenLimitError reports that count exceeds limit.
func NewTokenLimitError(count, limit int) *Error {
	return NewError(KindTokenLimit, fmt.Sprintf("input of ~%d tokens exceeds the %d token ceiling", count, limit))
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithVendor sets the vendor name.
func (e *Error) WithVendor(vendor string) *Error {
	e.Vendor = vendor
	return e
}

// WithRetryAfter records a server supplied wait hint.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.RetryAfter = d
	return e
}

// Info returns the serializable summary stored in a failed Response.
func (e *Error) Info() ErrorInfo {
	return ErrorInfo{
		Kind:       e.Kind,
		Reason:     e.Reason,
		Message:    e.Message,
		HTTPStatus: e.HTTPStatus,
		Retryable:  e.Retryable,
	}
}

// ErrorInfo is the error record kept under Response metadata "error".
type ErrorInfo struct {
	Kind       Kind   `json:"kind"`
	Reason     Reason `json:"reason,omitempty"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"http_status,omitempty"`
	Retryable  bool   `json:"retryable"`
}

// AsError extracts a *Error from the chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// KindOf extracts the error kind from an error.
func KindOf(err error) Kind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return ""
}

// ReasonOf extracts the transport reason from an error.
func ReasonOf(err error) Reason {
	if e, ok := AsError(err); ok {
		return e.Reason
	}
	return ""
}
