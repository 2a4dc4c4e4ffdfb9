// Package zai 提供 Z.ai（智谱 GLM）提供者。
// GLM 使用 OpenAI 兼容的 API 格式，路径为 {base}/chat/completions，不支持图片 detail。
package zai

import (
	"github.com/BaSui01/llmgate/llm"
	"github.com/BaSui01/llmgate/llm/providers"
	"github.com/BaSui01/llmgate/llm/providers/openaicompat"
	"github.com/BaSui01/llmgate/types"
)

// DefaultBaseURL Z.ai 国际站地址；国内站为 https://open.bigmodel.cn/api/paas/v4
const DefaultBaseURL = "https://api.z.ai/api/paas/v4"

// EndpointPath 相对 base 的补全路径
const EndpointPath = "/chat/completions"

// Descriptor 返回 Z.ai 的能力描述
func Descriptor() llm.Descriptor {
	d := openaicompat.WithContentFormat(llm.Descriptor{
		Vendor:       llm.VendorZAI,
		DisplayName:  "Z.ai GLM",
		BaseURL:      DefaultBaseURL,
		Auth:         llm.AuthBearer,
		DefaultModel: "glm-4.5v",
	})
	// GLM 的 image_url 只接受 url 字段
	d.FormatImageHash = func(img types.ImageSpec) (map[string]any, error) {
		return openaicompat.FormatImageURL(img.URL)
	}
	return d
}

// New 创建 Z.ai 提供者实例
func New(cfg providers.Config) *openaicompat.Provider {
	return openaicompat.New(openaicompat.Config{
		Config:       cfg,
		Descriptor:   Descriptor(),
		EndpointPath: EndpointPath,
	})
}
