// Package ollama 提供本地 Ollama 提供者，经由其 OpenAI 兼容端点
// /v1/chat/completions 调用。API Key 可选（反向代理鉴权时使用）。
package ollama

import (
	"strings"

	"github.com/BaSui01/llmgate/llm"
	"github.com/BaSui01/llmgate/llm/providers"
	"github.com/BaSui01/llmgate/llm/providers/openaicompat"
	"github.com/BaSui01/llmgate/types"
)

// DefaultBaseURL 本地 Ollama 默认地址
const DefaultBaseURL = "http://localhost:11434"

// Descriptor 返回 Ollama 的能力描述
func Descriptor() llm.Descriptor {
	d := openaicompat.WithContentFormat(llm.Descriptor{
		Vendor:       llm.VendorOllama,
		DisplayName:  "Ollama",
		BaseURL:      DefaultBaseURL,
		Auth:         llm.AuthOptionalBearer,
		DefaultModel: "llama3.2-vision",
	})
	d.FormatImageHash = func(img types.ImageSpec) (map[string]any, error) {
		return openaicompat.FormatImageURL(img.URL)
	}
	return d
}

// NormalizeHost 补全 OLLAMA_HOST 风格的地址（如 "127.0.0.1:11434"）
func NormalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	return strings.TrimRight(host, "/")
}

// New 创建 Ollama 提供者实例
func New(cfg providers.Config) *openaicompat.Provider {
	cfg.BaseURL = NormalizeHost(cfg.BaseURL)
	return openaicompat.New(openaicompat.Config{
		Config:     cfg,
		Descriptor: Descriptor(),
	})
}
