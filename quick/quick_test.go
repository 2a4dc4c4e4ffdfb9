package quick

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/llmgate/config"
	"github.com/BaSui01/llmgate/llm"
	"github.com/BaSui01/llmgate/llm/factory"
	"github.com/BaSui01/llmgate/llm/retry"
	"github.com/BaSui01/llmgate/testutil"
	"github.com/BaSui01/llmgate/types"
)

func stubbed(t *testing.T, vendor string, srv *testutil.VendorServer) []Option {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.SetVendor(vendor, config.VendorConfig{APIKey: "test-key", BaseURL: srv.URL})
	return []Option{
		WithConfig(cfg),
		WithFactoryOptions(
			factory.WithHTTPClient(srv.Client()),
			factory.WithRetryOptions(retry.WithSleep(func(context.Context, time.Duration) error { return nil })),
		),
	}
}

func TestGenerate_ArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"neither", Request{Model: "gpt-4o-mini"}},
		{"both", Request{Model: "gpt-4o-mini", Prompt: types.PlainText("hi"), Data: map[string]any{"text": "x"}, Type: "summarize_text"}},
		{"prompt and type", Request{Model: "gpt-4o-mini", Prompt: types.PlainText("hi"), Type: "custom"}},
		{"data without type", Request{Model: "gpt-4o-mini", Data: map[string]any{"text": "x"}}},
		{"type without data", Request{Model: "gpt-4o-mini", Type: "summarize_text"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := Generate(context.Background(), tt.req, WithConfig(config.DefaultConfig()))
			assert.ErrorIs(t, err, types.ErrInvalidArgument)
			assert.Nil(t, resp)
		})
	}
}

func TestGenerate_OpenAIHello(t *testing.T) {
	srv := testutil.NewVendorServer(t).Reply(http.StatusOK, `{
		"id": "chatcmpl-1",
		"choices": [{"message": {"role": "assistant", "content": "Hi"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 3, "completion_tokens": 1}
	}`)

	resp, err := Generate(testutil.TestContext(t), Request{Model: "gpt-4o-mini", Prompt: types.PlainText("Hello")}, stubbed(t, "openai", srv)...)
	require.NoError(t, err)
	assert.Equal(t, "Hi", testutil.AssertSuccess(t, resp))
	assert.Equal(t, 3, resp.InputTokens())
	assert.Equal(t, 1, resp.OutputTokens())
	assert.Equal(t, "gpt-4o-mini", resp.Model())
	assert.Equal(t, "openai", resp.Vendor())
	assert.Equal(t, "Hello", srv.LastRequest(t).JSON("messages.0.content.0.text").String())
}

func TestGenerate_ClaudeImageBeforeText(t *testing.T) {
	srv := testutil.NewVendorServer(t).Reply(http.StatusOK, `{
		"id": "msg_1",
		"content": [{"type": "text", "text": "A red square."}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 1200, "output_tokens": 5}
	}`)
	prompt, err := ParsePrompt(map[string]any{"text": "Describe", "images": "http://x/img.png"})
	require.NoError(t, err)

	resp, err := Generate(testutil.TestContext(t), Request{Model: "claude-3-5-sonnet", Prompt: prompt}, stubbed(t, "anthropic", srv)...)
	require.NoError(t, err)
	testutil.AssertSuccess(t, resp)
	assert.Equal(t, "anthropic", resp.Vendor())

	req := srv.LastRequest(t)
	assert.Equal(t, "image", req.JSON("messages.0.content.0.type").String())
	assert.Equal(t, "http://x/img.png", req.JSON("messages.0.content.0.source.url").String())
	assert.Equal(t, "text", req.JSON("messages.0.content.1.type").String())
	assert.Equal(t, "Describe", req.JSON("messages.0.content.1.text").String())
}

func TestGenerate_RateLimitExhaustion(t *testing.T) {
	srv := testutil.NewVendorServer(t).Reply(http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached"}}`)
	opts := stubbed(t, "openai", srv)

	resp, err := Generate(testutil.TestContext(t), Request{Model: "gpt-4o-mini", Prompt: types.PlainText("Hello")}, opts...)
	require.NoError(t, err, "vendor failures are reported in the response")
	info := testutil.AssertFailure(t, resp, types.KindTransport, types.ReasonRateLimit)
	assert.True(t, info.Retryable)
	assert.Equal(t, http.StatusTooManyRequests, info.HTTPStatus)
	assert.Equal(t, "Rate limit reached", info.Message)

	attempts := config.DefaultRetryConfig().MaxAttempts
	assert.Len(t, srv.Requests(), attempts)
	assert.Equal(t, attempts, resp.Metadata()[types.MetaAttempts])
}

func TestGenerate_Template(t *testing.T) {
	srv := testutil.NewVendorServer(t).Reply(http.StatusOK, `{
		"candidates": [{"content": {"parts": [{"text": "short"}]}, "finishReason": "STOP"}]
	}`)
	opts := append(stubbed(t, "gemini", srv), WithSystemPrompt("one line"))

	resp, err := Generate(testutil.TestContext(t), Request{
		Model: "gemini-1.5-flash",
		Type:  "summarize_text",
		Data:  map[string]any{"text": "A very long article."},
	}, opts...)
	require.NoError(t, err)
	testutil.AssertSuccess(t, resp)

	req := srv.LastRequest(t)
	assert.Contains(t, req.JSON("contents.0.parts.0.text").String(), "A very long article.")
	assert.Equal(t, "one line", req.JSON("systemInstruction.parts.0.text").String())
}

func TestBuildClient(t *testing.T) {
	cfg := config.DefaultConfig()

	_, err := BuildClient("gpt-4o", WithConfig(cfg))
	assert.Equal(t, types.KindConfiguration, types.KindOf(err))

	client, err := BuildClient("gpt-4o", WithConfig(cfg), WithAPIKey("sk-x"), WithType("custom"))
	require.NoError(t, err)
	assert.Equal(t, llm.VendorOpenAI, client.Vendor())
	assert.Equal(t, "custom", string(client.TemplateType()))
	_, ok := cfg.Vendor("openai")
	assert.False(t, ok, "WithAPIKey must not mutate the shared configuration")

	client, err = BuildClient("gpt-4o", WithConfig(cfg), WithVendor("ollama"))
	require.NoError(t, err)
	assert.Equal(t, llm.VendorOllama, client.Vendor())

	_, err = BuildClient("gpt-4o", WithConfig(cfg), WithVendor("bedrock"))
	assert.Equal(t, types.KindUnsupportedVendor, types.KindOf(err))
}

func TestParsePrompt(t *testing.T) {
	p, err := ParsePrompt("hi")
	require.NoError(t, err)
	assert.Equal(t, types.PlainText("hi"), p)

	p, err = ParsePrompt(map[string]any{"images": []any{"http://a", map[string]any{"url": "http://b", "detail": "low"}}})
	require.NoError(t, err)
	assert.Equal(t, types.Structured{Images: []types.ImageRef{
		types.ImageURL("http://a"),
		types.ImageSpec{URL: "http://b", Detail: types.DetailLow},
	}}, p)

	p, err = ParsePrompt([]any{map[string]any{"type": "text", "text": "x"}})
	require.NoError(t, err)
	assert.Equal(t, types.RawParts{{"type": "text", "text": "x"}}, p)

	for _, bad := range []any{42, []any{"x"}, map[string]any{"text": 1}, map[string]any{"images": 3}} {
		_, err := ParsePrompt(bad)
		assert.Equal(t, types.KindPrompt, types.KindOf(err), "%v", bad)
	}
}
