package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/llmgate/types"
)

// Provider is the vendor transport behind a Client: it owns the payload
// envelope, the auth headers and one HTTP round trip. Providers do not retry;
// the Client wraps every Completion in the retry policy.
type Provider interface {
	// Descriptor returns the immutable vendor capability record.
	Descriptor() Descriptor

	// Completion performs a single request. Errors are raw (HTTPError,
	// net errors, DecodeError); Classify turns them into *types.Error.
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// ChatRequest is the vendor neutral single-turn request.
type ChatRequest struct {
	Model       string
	System      string
	Parts       []types.ContentPart
	MaxTokens   int
	Temperature *float64
}

// ChatUsage is the token usage the vendor reported. A zero field means the
// vendor did not report it.
type ChatUsage struct {
	PromptTokens     int
	CompletionTokens int
}

// ChatResponse is the decoded vendor reply.
type ChatResponse struct {
	ID           string
	Model        string
	Text         string
	FinishReason string
	Usage        ChatUsage
}

// HTTPError is a non-2xx reply. Message is the vendor's own error text
// when it could be extracted.
type HTTPError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// DecodeError reports a 2xx body that could not be understood.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode response: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }
