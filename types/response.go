package types

import (
	"encoding/json"
	"maps"
)

// Metadata keys set by every client.
const (
	MetaError                = "error"
	MetaRequestID            = "request_id"
	MetaVendor               = "vendor"
	MetaAttempts             = "attempts"
	MetaLatencyMS            = "latency_ms"
	MetaFinishReason         = "finish_reason"
	MetaResponseID           = "response_id"
	MetaEstimatedInputTokens = "estimated_input_tokens"
)

// Response is the immutable outcome of one generate call.
type Response struct {
	output       string
	model        string
	vendor       string
	inputTokens  int
	outputTokens int
	success      bool
	metadata     map[string]any
}

// Usage carries token counts for a successful Response.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// NewSuccess builds a successful Response. metadata is copied.
func NewSuccess(output, model, vendor string, usage Usage, metadata map[string]any) *Response {
	return &Response{
		output:       output,
		model:        model,
		vendor:       vendor,
		inputTokens:  usage.InputTokens,
		outputTokens: usage.OutputTokens,
		success:      true,
		metadata:     cloneMeta(metadata),
	}
}

// NewFailure builds a failed Response carrying err under metadata "error".
func NewFailure(model, vendor string, err *Error, metadata map[string]any) *Response {
	md := cloneMeta(metadata)
	if err == nil {
		err = NewTransportError(ReasonUnknown, "unknown failure")
	}
	md[MetaError] = err.Info()
	return &Response{
		model:    model,
		vendor:   vendor,
		metadata: md,
	}
}

func cloneMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	maps.Copy(out, m)
	return out
}

func (r *Response) Output() string    { return r.output }
func (r *Response) Model() string     { return r.model }
func (r *Response) Vendor() string    { return r.vendor }
func (r *Response) InputTokens() int  { return r.inputTokens }
func (r *Response) OutputTokens() int { return r.outputTokens }
func (r *Response) Success() bool     { return r.success }

// Metadata returns a copy of the response metadata.
func (r *Response) Metadata() map[string]any {
	return cloneMeta(r.metadata)
}

// Meta returns a single metadata value.
func (r *Response) Meta(key string) (any, bool) {
	v, ok := r.metadata[key]
	return v, ok
}

// ErrorInfo returns the recorded failure, if any.
func (r *Response) ErrorInfo() (ErrorInfo, bool) {
	info, ok := r.metadata[MetaError].(ErrorInfo)
	return info, ok
}

// Err returns the recorded failure as an error, or nil on success.
func (r *Response) Err() error {
	info, ok := r.ErrorInfo()
	if !ok {
		return nil
	}
	return &Error{
		Kind:       info.Kind,
		Reason:     info.Reason,
		Message:    info.Message,
		HTTPStatus: info.HTTPStatus,
		Retryable:  info.Retryable,
		Vendor:     r.vendor,
	}
}

type responseJSON struct {
	Output       string         `json:"output"`
	Model        string         `json:"model"`
	Vendor       string         `json:"vendor,omitempty"`
	InputTokens  int            `json:"input_tokens"`
	OutputTokens int            `json:"output_tokens"`
	Success      bool           `json:"success"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r *Response) MarshalJSON() ([]byte, error) {
	return json.Marshal(responseJSON{
		Output:       r.output,
		Model:        r.model,
		Vendor:       r.vendor,
		InputTokens:  r.inputTokens,
		OutputTokens: r.outputTokens,
		Success:      r.success,
		Metadata:     r.metadata,
	})
}
