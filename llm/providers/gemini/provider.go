package gemini

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/llmgate/llm"
	"github.com/BaSui01/llmgate/llm/providers"
	"github.com/BaSui01/llmgate/types"
)

// DefaultBaseURL Gemini API 地址
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

var errNoCandidates = errors.New("response has no candidates")

// Descriptor 返回 Gemini 的能力描述：图片在前，不支持 detail，x-goog-api-key 认证
func Descriptor() llm.Descriptor {
	return llm.Descriptor{
		Vendor:           llm.VendorGemini,
		DisplayName:      "Google Gemini",
		BaseURL:          DefaultBaseURL,
		Auth:             llm.AuthGoogAPIKey,
		DefaultModel:     "gemini-1.5-flash",
		ImagesBeforeText: true,
		FormatText: func(text string) map[string]any {
			return map[string]any{"text": text}
		},
		FormatImageURL: formatImageURL,
		FormatImageHash: func(img types.ImageSpec) (map[string]any, error) {
			return formatImageURL(img.URL)
		},
		CheckRawPart: llm.CheckKeyedPart("text", "inlineData", "fileData"),
	}
}

// formatImageURL data URL 内联为 inlineData，其余作为 fileData 引用
func formatImageURL(u string) (map[string]any, error) {
	if mimeType, data, ok := providers.ParseDataURL(u); ok {
		return map[string]any{"inlineData": map[string]any{"mimeType": mimeType, "data": data}}, nil
	}
	if strings.HasPrefix(u, "data:") {
		return nil, errors.New("data url is not base64 encoded")
	}
	return map[string]any{"fileData": map[string]any{
		"mimeType": providers.GuessMediaType(u),
		"fileUri":  u,
	}}, nil
}

// Provider 实现 Google Gemini generateContent。
// Gemini API 特点：
// 1. 使用 x-goog-api-key 请求头认证
// 2. 模型名位于 URL 路径中
// 3. system 提示通过 systemInstruction 传递，参数位于 generationConfig
type Provider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

var _ llm.Provider = (*Provider)(nil)

// New 创建 Gemini Provider
func New(cfg providers.Config) *Provider {
	return &Provider{
		apiKey:  cfg.APIKey,
		baseURL: cfg.ResolveBaseURL(DefaultBaseURL),
		client:  cfg.Client(),
		logger:  cfg.ResolveLogger().With(zap.String("provider", string(llm.VendorGemini))),
	}
}

// Descriptor 返回能力描述
func (p *Provider) Descriptor() llm.Descriptor { return Descriptor() }

// Endpoint 返回模型对应的 generateContent 地址
func (p *Provider) Endpoint(model string) string {
	model = strings.TrimPrefix(model, "models/")
	return providers.Endpoint(p.baseURL, "/v1beta/models/"+url.PathEscape(model)+":generateContent")
}

type content struct {
	Role  string           `json:"role,omitempty"`
	Parts []map[string]any `json:"parts"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type request struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type response struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata,omitempty"`
	ModelVersion string `json:"modelVersion"`
	ResponseID   string `json:"responseId"`
}

// Completion 发送一次 generateContent 请求
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := providers.ChooseModel(req, Descriptor().DefaultModel)
	body := request{
		Contents: []content{{Role: "user", Parts: llm.Payloads(req.Parts)}},
	}
	if req.System != "" {
		body.SystemInstruction = &content{Parts: []map[string]any{{"text": req.System}}}
	}
	if req.MaxTokens > 0 || req.Temperature != nil {
		body.GenerationConfig = &generationConfig{Temperature: req.Temperature, MaxOutputTokens: req.MaxTokens}
	}

	h := http.Header{}
	h.Set("x-goog-api-key", p.apiKey)

	p.logger.Debug("generateContent", zap.String("model", model), zap.Int("parts", len(req.Parts)))

	var out response
	if err := providers.PostJSON(ctx, p.client, p.Endpoint(model), h, body, &out); err != nil {
		return nil, err
	}
	if len(out.Candidates) == 0 {
		return nil, &llm.DecodeError{Err: errNoCandidates}
	}

	cand := out.Candidates[0]
	var text strings.Builder
	for _, part := range cand.Content.Parts {
		text.WriteString(part.Text)
	}
	resp := &llm.ChatResponse{
		ID:           out.ResponseID,
		Model:        out.ModelVersion,
		Text:         text.String(),
		FinishReason: cand.FinishReason,
	}
	if out.UsageMetadata != nil {
		resp.Usage = llm.ChatUsage{
			PromptTokens:     out.UsageMetadata.PromptTokenCount,
			CompletionTokens: out.UsageMetadata.CandidatesTokenCount,
		}
	}
	return resp, nil
}
