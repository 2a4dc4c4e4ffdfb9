package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"

	"github.com/BaSui01/llmgate/types"
)

// tokenLimitMarkers are substrings vendors use when the input is too long.
var tokenLimitMarkers = []string{
	"context length",
	"context_length",
	"maximum context",
	"too many tokens",
	"prompt is too long",
	"input is too long",
	"exceeds the maximum",
	"token limit",
}

// Classify maps any failure raised around an outbound call to a typed error.
// It is pure: no I/O, no logging.
func Classify(err error) *types.Error {
	if err == nil {
		return nil
	}

	// 已分类的错误原样返回
	if te, ok := types.AsError(err); ok {
		return te
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return classifyStatus(httpErr).WithCause(err)
	}

	switch {
	case errors.Is(err, context.Canceled):
		return types.NewTransportError(types.ReasonCanceled, "request canceled").WithCause(err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return types.NewTransportError(types.ReasonTimeout, "request timed out").WithCause(err)
	}

	var decodeErr *DecodeError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &decodeErr) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return types.NewTransportError(types.ReasonMalformedResponse, "vendor response could not be decoded").WithCause(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.NewTransportError(types.ReasonTimeout, "request timed out").WithCause(err)
	}

	if isConnectionError(err) {
		return types.NewTransportError(types.ReasonConnection, "connection failed").WithCause(err)
	}

	return types.NewTransportError(types.ReasonUnknown, err.Error()).WithCause(err)
}

func classifyStatus(e *HTTPError) *types.Error {
	status := e.StatusCode
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(status)
	}

	var out *types.Error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		out = types.NewTransportError(types.ReasonAuthFailure, msg)
	case status == http.StatusTooManyRequests:
		out = types.NewTransportError(types.ReasonRateLimit, msg)
	case status == http.StatusRequestTimeout:
		out = types.NewTransportError(types.ReasonTimeout, msg)
	case status == http.StatusRequestEntityTooLarge,
		status == http.StatusBadRequest && mentionsTokenLimit(msg):
		out = types.NewError(types.KindTokenLimit, msg)
	case status >= 500:
		// 529 (overloaded) falls here too.
		out = types.NewTransportError(types.ReasonServerError, msg)
	case status >= 400:
		out = types.NewTransportError(types.ReasonBadRequest, msg)
	default:
		out = types.NewTransportError(types.ReasonUnknown, msg)
	}
	return out.WithHTTPStatus(status).WithRetryAfter(e.RetryAfter)
}

func mentionsTokenLimit(msg string) bool {
	lower := strings.ToLower(msg)
	for _, m := range tokenLimitMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func isConnectionError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var dnsErr *net.DNSError
	var opErr *net.OpError
	var urlErr *url.Error
	return errors.As(err, &dnsErr) || errors.As(err, &opErr) || errors.As(err, &urlErr)
}
