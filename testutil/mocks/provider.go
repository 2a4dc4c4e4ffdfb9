// MockProvider 的 LLM 提供商测试模拟实现。
//
// 支持固定响应、按序脚本化错误与调用记录。
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/llmgate/llm"
	"github.com/BaSui01/llmgate/types"
)

// --- 测试用 Descriptor ---

// TextDescriptor 返回 OpenAI 风格的测试 Descriptor：文本在前，支持 detail。
func TextDescriptor(vendor llm.Vendor) llm.Descriptor {
	return llm.Descriptor{
		Vendor:         vendor,
		DisplayName:    "mock",
		BaseURL:        "http://mock-provider",
		Auth:           llm.AuthNone,
		DefaultModel:   "mock-model",
		SupportsDetail: true,
		FormatText: func(text string) map[string]any {
			return map[string]any{"type": "text", "text": text}
		},
		FormatImageURL: func(url string) (map[string]any, error) {
			return map[string]any{"type": "image_url", "image_url": map[string]any{"url": url}}, nil
		},
		FormatImageHash: func(spec types.ImageSpec) (map[string]any, error) {
			img := map[string]any{"url": spec.URL}
			if spec.Detail != "" {
				img["detail"] = string(spec.Detail)
			}
			return map[string]any{"type": "image_url", "image_url": img}, nil
		},
		CheckRawPart: llm.CheckTypedPart("text", "image_url"),
	}
}

// --- MockProvider 结构 ---

// MockProvider 是 llm.Provider 的模拟实现
type MockProvider struct {
	mu sync.Mutex

	desc llm.Descriptor

	// 响应配置
	response     string
	finishReason string
	err          error
	script       []error

	// Token 使用统计
	promptTokens     int
	completionTokens int

	// 调用记录
	calls          []MockProviderCall
	completionFunc func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

	// 行为控制
	delay time.Duration
}

var _ llm.Provider = (*MockProvider)(nil)

// MockProviderCall 记录单次调用
type MockProviderCall struct {
	Request  *llm.ChatRequest
	Response *llm.ChatResponse
	Error    error
	At       time.Time
}

// --- 构造函数和 Builder 方法 ---

// NewMockProvider 创建新的 MockProvider
func NewMockProvider(desc llm.Descriptor) *MockProvider {
	return &MockProvider{
		desc:             desc,
		response:         "Mock response",
		finishReason:     "stop",
		promptTokens:     10,
		completionTokens: 20,
	}
}

// WithResponse 设置固定响应内容
func (m *MockProvider) WithResponse(response string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
	return m
}

// WithError 设置每次调用都返回的错误
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithErrors 设置按序返回的错误脚本，nil 表示该次调用成功；脚本耗尽后正常响应
func (m *MockProvider) WithErrors(errs ...error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, errs...)
	return m
}

// WithTokenUsage 设置 Token 使用量，0 表示不上报
func (m *MockProvider) WithTokenUsage(prompt, completion int) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promptTokens = prompt
	m.completionTokens = completion
	return m
}

// WithDelay 设置响应延迟，延迟期间响应 ctx 取消
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithCompletionFunc 设置自定义 Completion 函数
func (m *MockProvider) WithCompletionFunc(fn func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completionFunc = fn
	return m
}

// --- Provider 接口实现 ---

// Descriptor 返回 Descriptor
func (m *MockProvider) Descriptor() llm.Descriptor {
	return m.desc
}

// Completion 生成响应
func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			m.record(req, nil, ctx.Err())
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// 按序脚本
	if len(m.script) > 0 {
		err := m.script[0]
		m.script = m.script[1:]
		if err != nil {
			m.calls = append(m.calls, MockProviderCall{Request: req, Error: err, At: time.Now()})
			return nil, err
		}
	}

	// 检查是否有预设错误
	if m.err != nil {
		m.calls = append(m.calls, MockProviderCall{Request: req, Error: m.err, At: time.Now()})
		return nil, m.err
	}

	// 使用自定义函数
	if m.completionFunc != nil {
		resp, err := m.completionFunc(ctx, req)
		m.calls = append(m.calls, MockProviderCall{Request: req, Response: resp, Error: err, At: time.Now()})
		return resp, err
	}

	resp := &llm.ChatResponse{
		ID:           "mock-response-id",
		Model:        req.Model,
		Text:         m.response,
		FinishReason: m.finishReason,
		Usage: llm.ChatUsage{
			PromptTokens:     m.promptTokens,
			CompletionTokens: m.completionTokens,
		},
	}
	m.calls = append(m.calls, MockProviderCall{Request: req, Response: resp, At: time.Now()})
	return resp, nil
}

func (m *MockProvider) record(req *llm.ChatRequest, resp *llm.ChatResponse, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockProviderCall{Request: req, Response: resp, Error: err, At: time.Now()})
}

// --- 调用记录 ---

// Calls 返回调用记录副本
func (m *MockProvider) Calls() []MockProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockProviderCall(nil), m.calls...)
}

// CallCount 返回调用次数
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastRequest 返回最后一次请求
func (m *MockProvider) LastRequest() *llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1].Request
}

// Reset 清空调用记录与错误脚本
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.script = nil
	m.err = nil
}
