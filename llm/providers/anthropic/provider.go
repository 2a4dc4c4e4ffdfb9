package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/llmgate/llm"
	"github.com/BaSui01/llmgate/llm/providers"
	"github.com/BaSui01/llmgate/types"
)

const (
	// DefaultBaseURL Anthropic API 地址
	DefaultBaseURL = "https://api.anthropic.com"
	// DefaultVersion anthropic-version 请求头
	DefaultVersion = "2023-06-01"
	// DefaultMaxTokens Messages API 要求 max_tokens，未指定时使用
	DefaultMaxTokens = 1024

	messagesPath = "/v1/messages"
)

var errNoContent = errors.New("response has no content blocks")

// Options Anthropic 特有的透传选项
type Options struct {
	Version string `mapstructure:"anthropic_version"`
	Beta    string `mapstructure:"anthropic_beta"`
}

// Descriptor 返回 Anthropic 的能力描述：图片在前，不支持 detail，x-api-key 认证
func Descriptor() llm.Descriptor {
	return llm.Descriptor{
		Vendor:           llm.VendorAnthropic,
		DisplayName:      "Anthropic Claude",
		BaseURL:          DefaultBaseURL,
		Auth:             llm.AuthXAPIKey,
		DefaultModel:     "claude-3-5-sonnet-latest",
		ImagesBeforeText: true,
		FormatText:       formatText,
		FormatImageURL:   formatImageURL,
		FormatImageHash: func(img types.ImageSpec) (map[string]any, error) {
			return formatImageURL(img.URL)
		},
		CheckRawPart: llm.CheckTypedPart("text", "image"),
	}
}

func formatText(text string) map[string]any {
	return map[string]any{"type": "text", "text": text}
}

// formatImageURL 远程 URL 使用 url source，data URL 内联为 base64 source
func formatImageURL(u string) (map[string]any, error) {
	if mediaType, data, ok := providers.ParseDataURL(u); ok {
		return map[string]any{
			"type": "image",
			"source": map[string]any{
				"type":       "base64",
				"media_type": mediaType,
				"data":       data,
			},
		}, nil
	}
	if strings.HasPrefix(u, "data:") {
		return nil, errors.New("data url is not base64 encoded")
	}
	return map[string]any{
		"type":   "image",
		"source": map[string]any{"type": "url", "url": u},
	}, nil
}

// Provider 实现 Anthropic Messages API。
// 与 OpenAI 的差异：
// 1. 认证使用 x-api-key 请求头而非 Bearer Token
// 2. system 单独传递，max_tokens 必填
// 3. 用量字段为 input_tokens / output_tokens
type Provider struct {
	apiKey   string
	opts     Options
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

var _ llm.Provider = (*Provider)(nil)

// New 创建 Anthropic Provider
func New(cfg providers.Config) (*Provider, error) {
	var opts Options
	if err := cfg.DecodeOptions(&opts); err != nil {
		return nil, err
	}
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	return &Provider{
		apiKey:   cfg.APIKey,
		opts:     opts,
		endpoint: providers.Endpoint(cfg.ResolveBaseURL(DefaultBaseURL), messagesPath),
		client:   cfg.Client(),
		logger:   cfg.ResolveLogger().With(zap.String("provider", string(llm.VendorAnthropic))),
	}, nil
}

// Descriptor 返回能力描述
func (p *Provider) Descriptor() llm.Descriptor { return Descriptor() }

type message struct {
	Role    string           `json:"role"`
	Content []map[string]any `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
	Messages    []message `json:"messages"`
}

type response struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *Provider) buildHeaders() http.Header {
	h := http.Header{}
	h.Set("x-api-key", p.apiKey)
	h.Set("anthropic-version", p.opts.Version)
	if p.opts.Beta != "" {
		h.Set("anthropic-beta", p.opts.Beta)
	}
	return h
}

// Completion 发送一次 Messages 请求
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	body := request{
		Model:       providers.ChooseModel(req, Descriptor().DefaultModel),
		System:      req.System,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages:    []message{{Role: "user", Content: llm.Payloads(req.Parts)}},
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = DefaultMaxTokens
	}

	p.logger.Debug("messages request", zap.String("model", body.Model), zap.Int("parts", len(req.Parts)))

	var out response
	if err := providers.PostJSON(ctx, p.client, p.endpoint, p.buildHeaders(), body, &out); err != nil {
		return nil, err
	}
	if len(out.Content) == 0 {
		return nil, &llm.DecodeError{Err: errNoContent}
	}

	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return &llm.ChatResponse{
		ID:           out.ID,
		Model:        out.Model,
		Text:         text.String(),
		FinishReason: out.StopReason,
		Usage: llm.ChatUsage{
			PromptTokens:     out.Usage.InputTokens,
			CompletionTokens: out.Usage.OutputTokens,
		},
	}, nil
}
