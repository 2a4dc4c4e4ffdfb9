package openai

import (
	"net/http"

	"github.com/BaSui01/llmgate/llm"
	"github.com/BaSui01/llmgate/llm/providers"
	"github.com/BaSui01/llmgate/llm/providers/openaicompat"
)

// DefaultBaseURL OpenAI 官方 API 地址
const DefaultBaseURL = "https://api.openai.com"

// Options OpenAI 特有的透传选项
type Options struct {
	Organization string `mapstructure:"organization"`
	Project      string `mapstructure:"project"`
}

// Descriptor 返回 OpenAI 的能力描述：文本在前，支持 detail，Bearer 认证
func Descriptor() llm.Descriptor {
	return openaicompat.WithContentFormat(llm.Descriptor{
		Vendor:         llm.VendorOpenAI,
		DisplayName:    "OpenAI",
		BaseURL:        DefaultBaseURL,
		Auth:           llm.AuthBearer,
		DefaultModel:   "gpt-4o-mini",
		SupportsDetail: true,
	})
}

// New 创建 OpenAI 提供者实例，支持 organization / project 头
func New(cfg providers.Config) (*openaicompat.Provider, error) {
	var opts Options
	if err := cfg.DecodeOptions(&opts); err != nil {
		return nil, err
	}
	return openaicompat.New(openaicompat.Config{
		Config:     cfg,
		Descriptor: Descriptor(),
		BuildHeaders: func(h http.Header) {
			if opts.Organization != "" {
				h.Set("OpenAI-Organization", opts.Organization)
			}
			if opts.Project != "" {
				h.Set("OpenAI-Project", opts.Project)
			}
		},
	}), nil
}
