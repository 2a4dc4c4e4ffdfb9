// =============================================================================
// llmgate OpenAI-Compatible Provider Base
// =============================================================================
// Shared envelope for every vendor speaking the Chat Completions dialect.
// openai, openrouter, zai and ollama build on this and only declare what
// differs (descriptor, endpoint path, headers).
// =============================================================================

package openaicompat

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/llmgate/llm"
	"github.com/BaSui01/llmgate/llm/providers"
	"github.com/BaSui01/llmgate/types"
)

// DefaultEndpointPath is the Chat Completions path under the base URL.
const DefaultEndpointPath = "/v1/chat/completions"

var errNoChoices = errors.New("response has no choices")

// Config holds the configuration for an OpenAI-compatible provider.
type Config struct {
	providers.Config

	// Descriptor is the vendor capability record; its BaseURL is the
	// default when Config.BaseURL is empty.
	Descriptor llm.Descriptor

	// EndpointPath defaults to "/v1/chat/completions".
	EndpointPath string

	// BuildHeaders adds vendor specific headers after auth is applied.
	BuildHeaders func(h http.Header)
}

// Provider is the base implementation for OpenAI-compatible vendors.
type Provider struct {
	cfg      Config
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

var _ llm.Provider = (*Provider)(nil)

// New creates a new OpenAI-compatible provider with the given config.
func New(cfg Config) *Provider {
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = DefaultEndpointPath
	}
	base := cfg.ResolveBaseURL(cfg.Descriptor.BaseURL)
	logger := cfg.ResolveLogger().With(zap.String("provider", string(cfg.Descriptor.Vendor)))
	logger.Debug("provider created", zap.String("base_url", base))
	return &Provider{
		cfg:      cfg,
		endpoint: providers.Endpoint(base, cfg.EndpointPath),
		client:   cfg.Client(),
		logger:   logger,
	}
}

// Descriptor returns the vendor capability record.
func (p *Provider) Descriptor() llm.Descriptor { return p.cfg.Descriptor }

// Endpoint returns the full completion URL.
func (p *Provider) Endpoint() string { return p.endpoint }

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type response struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage,omitempty"`
}

// buildHeaders applies auth and vendor headers.
func (p *Provider) buildHeaders() http.Header {
	h := http.Header{}
	switch p.cfg.Descriptor.Auth {
	case llm.AuthBearer:
		h.Set("Authorization", "Bearer "+p.cfg.APIKey)
	case llm.AuthOptionalBearer:
		if p.cfg.APIKey != "" {
			h.Set("Authorization", "Bearer "+p.cfg.APIKey)
		}
	}
	if p.cfg.BuildHeaders != nil {
		p.cfg.BuildHeaders(h)
	}
	return h
}

// Completion performs a single chat completion.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	body := request{
		Model:       providers.ChooseModel(req, p.cfg.Descriptor.DefaultModel),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, message{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, message{Role: "user", Content: llm.Payloads(req.Parts)})

	p.logger.Debug("chat completion", zap.String("model", body.Model), zap.Int("parts", len(req.Parts)))

	var out response
	if err := providers.PostJSON(ctx, p.client, p.endpoint, p.buildHeaders(), body, &out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, &llm.DecodeError{Err: errNoChoices}
	}

	choice := out.Choices[0]
	resp := &llm.ChatResponse{
		ID:           out.ID,
		Model:        out.Model,
		FinishReason: choice.FinishReason,
	}
	if choice.Message.Content != nil {
		resp.Text = *choice.Message.Content
	}
	if out.Usage != nil {
		resp.Usage = llm.ChatUsage{
			PromptTokens:     out.Usage.PromptTokens,
			CompletionTokens: out.Usage.CompletionTokens,
		}
	}
	return resp, nil
}

// =============================================================================
// Content parts
// =============================================================================

// FormatText renders {"type":"text","text":...}.
func FormatText(text string) map[string]any {
	return map[string]any{"type": "text", "text": text}
}

// FormatImageURL renders {"type":"image_url","image_url":{"url":...}}.
func FormatImageURL(url string) (map[string]any, error) {
	return map[string]any{"type": "image_url", "image_url": map[string]any{"url": url}}, nil
}

// FormatImageHash renders an image record, keeping detail when set.
func FormatImageHash(img types.ImageSpec) (map[string]any, error) {
	inner := map[string]any{"url": img.URL}
	if img.Detail != "" {
		inner["detail"] = string(img.Detail)
	}
	return map[string]any{"type": "image_url", "image_url": inner}, nil
}

// WithContentFormat fills the Chat Completions content functions of d.
func WithContentFormat(d llm.Descriptor) llm.Descriptor {
	d.FormatText = FormatText
	d.FormatImageURL = FormatImageURL
	d.FormatImageHash = FormatImageHash
	d.CheckRawPart = llm.CheckTypedPart("text", "image_url")
	return d
}
