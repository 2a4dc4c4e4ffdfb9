// Package openrouter 提供 OpenRouter 提供者。OpenRouter 以 org/model 形式的
// 命名空间模型 ID 路由到上游厂商，线上格式与 OpenAI Chat Completions 相同。
package openrouter

import (
	"net/http"

	"github.com/BaSui01/llmgate/llm"
	"github.com/BaSui01/llmgate/llm/providers"
	"github.com/BaSui01/llmgate/llm/providers/openaicompat"
)

// DefaultBaseURL OpenRouter API 地址
const DefaultBaseURL = "https://openrouter.ai/api"

// Options OpenRouter 应用归属头
type Options struct {
	HTTPReferer string `mapstructure:"http_referer"`
	AppName     string `mapstructure:"app_name"`
}

// Descriptor 返回 OpenRouter 的能力描述
func Descriptor() llm.Descriptor {
	return openaicompat.WithContentFormat(llm.Descriptor{
		Vendor:         llm.VendorOpenRouter,
		DisplayName:    "OpenRouter",
		BaseURL:        DefaultBaseURL,
		Auth:           llm.AuthBearer,
		DefaultModel:   "openai/gpt-4o-mini",
		SupportsDetail: true,
	})
}

// New 创建 OpenRouter 提供者实例
func New(cfg providers.Config) (*openaicompat.Provider, error) {
	var opts Options
	if err := cfg.DecodeOptions(&opts); err != nil {
		return nil, err
	}
	return openaicompat.New(openaicompat.Config{
		Config:     cfg,
		Descriptor: Descriptor(),
		BuildHeaders: func(h http.Header) {
			if opts.HTTPReferer != "" {
				h.Set("HTTP-Referer", opts.HTTPReferer)
			}
			if opts.AppName != "" {
				h.Set("X-Title", opts.AppName)
			}
		},
	}), nil
}
