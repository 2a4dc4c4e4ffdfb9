package factory

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/BaSui01/llmgate/config"
	"github.com/BaSui01/llmgate/llm"
	"github.com/BaSui01/llmgate/llm/retry"
	"github.com/BaSui01/llmgate/testutil"
	"github.com/BaSui01/llmgate/types"
)

// =============================================================================
// Inference
// =============================================================================

func TestInferVendor(t *testing.T) {
	tests := []struct {
		model string
		want  llm.Vendor
	}{
		{"gpt-4o-mini", llm.VendorOpenAI},
		{"GPT-4.1", llm.VendorOpenAI},
		{"o1-preview", llm.VendorOpenAI},
		{"o3", llm.VendorOpenAI},
		{"o4-mini", llm.VendorOpenAI},
		{"chatgpt-4o-latest", llm.VendorOpenAI},
		{"claude-3-opus", llm.VendorAnthropic},
		{"claude-3-5-sonnet", llm.VendorAnthropic},
		{"gemini-1.5-pro", llm.VendorGemini},
		{"glm-4.5v", llm.VendorZAI},
		{"anthropic/claude-3.5-sonnet", llm.VendorOpenRouter},
		{"openai/gpt-4o", llm.VendorOpenRouter},
		{"llama3.2-vision", llm.VendorOllama},
		{"mistral", llm.VendorOllama},
		{"omni", llm.VendorOllama},
		{"", llm.VendorOllama},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, InferVendor(tt.model))
		})
	}
}

func TestInferVendor_SignatureWins(t *testing.T) {
	signatures := map[string]llm.Vendor{
		"claude": llm.VendorAnthropic,
		"gemini": llm.VendorGemini,
		"glm":    llm.VendorZAI,
		"gpt":    llm.VendorOpenAI,
	}
	rapid.Check(t, func(t *rapid.T) {
		sig := rapid.SampledFrom([]string{"claude", "gemini", "glm", "gpt"}).Draw(t, "sig")
		prefix := rapid.StringMatching(`[a-z0-9.\-]{0,8}`).Draw(t, "prefix")
		suffix := rapid.StringMatching(`[a-z0-9.\-]{0,8}`).Draw(t, "suffix")
		got := InferVendor(prefix + sig + suffix)

		// 更早的规则可能同时命中（如 "claude-gemini"），但结果必须是确定的且不回落到 ollama
		assert.NotEqual(t, llm.VendorOllama, got)
		assert.Equal(t, got, InferVendor(prefix+sig+suffix))
		if got != signatures[sig] {
			idx := func(v llm.Vendor) int {
				for i, r := range inferenceRules {
					if r.vendor == v {
						return i
					}
				}
				return len(inferenceRules)
			}
			assert.Less(t, idx(got), idx(signatures[sig]), "only an earlier rule may take precedence")
		}
	})
}

func TestResolveVendor(t *testing.T) {
	v, err := ResolveVendor("gpt-4o", " Claude ")
	require.NoError(t, err)
	assert.Equal(t, llm.VendorAnthropic, v, "explicit vendor ignores the model name")

	v, err = ResolveVendor("claude-3-opus", "OLLAMA")
	require.NoError(t, err)
	assert.Equal(t, llm.VendorOllama, v)

	_, err = ResolveVendor("gpt-4o", "azure")
	assert.Equal(t, types.KindUnsupportedVendor, types.KindOf(err))

	_, err = ResolveVendor("", "")
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

// =============================================================================
// Registry
// =============================================================================

func TestDescriptors(t *testing.T) {
	descs := Descriptors()
	require.Len(t, descs, len(SupportedVendors()))
	for i, d := range descs {
		assert.Equal(t, SupportedVendors()[i], d.Vendor)
		assert.NoError(t, d.Validate(), d.Vendor)
		assert.NotEmpty(t, d.DefaultModel, d.Vendor)
	}

	d, ok := Descriptor(llm.VendorAnthropic)
	require.True(t, ok)
	assert.True(t, d.ImagesBeforeText)
	_, ok = Descriptor("azure")
	assert.False(t, ok)
}

// =============================================================================
// Build
// =============================================================================

func noSleep() Option {
	return WithRetryOptions(retry.WithSleep(func(context.Context, time.Duration) error { return nil }))
}

func configFor(vendor, baseURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.SetVendor(vendor, config.VendorConfig{APIKey: "key", BaseURL: baseURL})
	return cfg
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		tmpl     string
		vendor   string
		cfg      *config.Config
		wantKind types.Kind
		wantArg  bool
	}{
		{name: "unknown vendor", model: "gpt-4o", vendor: "azure", wantKind: types.KindUnsupportedVendor},
		{name: "missing key", model: "gpt-4o", wantKind: types.KindConfiguration},
		{name: "missing key explicit vendor", vendor: "gemini", wantKind: types.KindConfiguration},
		{name: "unknown template", model: "llama3", tmpl: "poetry", wantKind: types.KindPrompt},
		{name: "no model no vendor", wantArg: true},
		{
			name:  "bad call options",
			model: "llama3",
			cfg: &config.Config{Vendors: map[string]config.VendorConfig{
				"ollama": {Options: map[string]any{"max_tokens": "many"}},
			}},
			wantKind: types.KindConfiguration,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := Build(tt.model, tt.tmpl, tt.vendor, tt.cfg)
			require.Error(t, err)
			assert.Nil(t, client)
			if tt.wantArg {
				assert.ErrorIs(t, err, types.ErrInvalidArgument)
				return
			}
			assert.Equal(t, tt.wantKind, types.KindOf(err))
		})
	}
}

func TestBuild_DefaultsAndFreshInstances(t *testing.T) {
	// ollama 不需要 API Key
	c1, err := Build("", "summarize_text", "ollama", nil)
	require.NoError(t, err)
	assert.Equal(t, llm.VendorOllama, c1.Vendor())
	assert.Equal(t, "llama3.2-vision", c1.Model())
	assert.Equal(t, "summarize_text", string(c1.TemplateType()))

	cfg := configFor("openai", "")
	cfg.Vendors["openai"] = config.VendorConfig{APIKey: "k", DefaultModel: "gpt-4.1-mini"}
	c2, err := Build("", "", "openai", cfg)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1-mini", c2.Model())

	c3, err := Build("", "", "openai", cfg)
	require.NoError(t, err)
	assert.NotSame(t, c2, c3)
}

func TestBuild_EndToEnd(t *testing.T) {
	srv := testutil.NewVendorServer(t).Reply(http.StatusOK, `{
		"id": "chatcmpl-1",
		"model": "gpt-4o-mini-2024-07-18",
		"choices": [{"message": {"role": "assistant", "content": "Hi"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 3, "completion_tokens": 1}
	}`)
	cfg := configFor("openai", srv.URL)
	cfg.Vendors["openai"] = config.VendorConfig{
		APIKey:  "sk-test",
		BaseURL: srv.URL,
		Options: map[string]any{"system": "be brief", "temperature": "0.2", "organization": "org-1"},
	}

	client, err := Build("gpt-4o-mini", "", "", cfg,
		WithHTTPClient(srv.Client()),
		WithVendorOptions(map[string]any{"max_tokens": 64}),
		WithRequestIDFunc(func() string { return "req-1" }))
	require.NoError(t, err)
	assert.Equal(t, llm.VendorOpenAI, client.Vendor())

	resp := client.GenerateSimple(testutil.TestContext(t), types.PlainText("Hello"))
	assert.Equal(t, "Hi", testutil.AssertSuccess(t, resp))
	assert.Equal(t, 3, resp.InputTokens())
	assert.Equal(t, 1, resp.OutputTokens())
	assert.Equal(t, "req-1", resp.Metadata()[types.MetaRequestID])

	req := srv.LastRequest(t)
	assert.Equal(t, "/v1/chat/completions", req.Path)
	assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))
	assert.Equal(t, "org-1", req.Header.Get("OpenAI-Organization"))
	assert.Equal(t, "gpt-4o-mini", req.JSON("model").String())
	assert.Equal(t, "be brief", req.JSON("messages.0.content").String())
	assert.Equal(t, int64(64), req.JSON("max_tokens").Int())
	assert.InDelta(t, 0.2, req.JSON("temperature").Float(), 1e-9)
}

func TestBuild_RetryPolicyAndLogging(t *testing.T) {
	srv := testutil.NewVendorServer(t).Reply(http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`)
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := configFor("anthropic", srv.URL)
	vc := cfg.Vendors["anthropic"]
	vc.LogLevel = "warn"
	cfg.Vendors["anthropic"] = vc

	client, err := Build("claude-3-5-sonnet", "", "", cfg,
		WithHTTPClient(srv.Client()),
		WithLogger(zap.New(core)),
		WithRetryPolicy(retry.Policy{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}),
		noSleep())
	require.NoError(t, err)

	resp := client.GenerateSimple(testutil.TestContext(t), types.PlainText("hi"))
	testutil.AssertFailure(t, resp, types.KindTransport, types.ReasonRateLimit)
	assert.Len(t, srv.Requests(), 2)

	// vendor log_level=warn 屏蔽 debug 行，只保留失败告警
	assert.Zero(t, logs.FilterLevelExact(zapcore.DebugLevel).Len())
	failed := logs.FilterMessage("generate failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "anthropic", failed[0].ContextMap()["vendor"])
}

func TestBuild_SharesRateLimiterAcrossClients(t *testing.T) {
	srv := testutil.NewVendorServer(t).Reply(http.StatusOK, `{
		"id": "chatcmpl-1",
		"choices": [{"message": {"role": "assistant", "content": "ok"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 1, "completion_tokens": 1}
	}`)
	cfg := configFor("openai", srv.URL)
	vc := cfg.Vendors["openai"]
	vc.RequestsPerSecond = 0.5
	vc.Burst = 1
	cfg.Vendors["openai"] = vc

	build := func() llm.Client {
		c, err := Build("gpt-4o-mini", "", "", cfg, WithHTTPClient(srv.Client()))
		require.NoError(t, err)
		return c
	}

	testutil.AssertSuccess(t, build().GenerateSimple(testutil.TestContext(t), types.PlainText("first")))

	// 新客户端共用同一个令牌桶，第二次调用需等待约 2s，超出 50ms 截止时间
	ctx := testutil.TestContextWithTimeout(t, 50*time.Millisecond)
	resp := build().GenerateSimple(ctx, types.PlainText("second"))
	testutil.AssertFailure(t, resp, types.KindTransport, types.ReasonTimeout)
	assert.Len(t, srv.Requests(), 1)
}

func TestSharedLimiter(t *testing.T) {
	assert.Nil(t, sharedLimiter(llm.VendorOpenAI, "http://a", 0, 1))

	a := sharedLimiter(llm.VendorOpenAI, "http://limiter-a", 3, 0)
	require.NotNil(t, a)
	assert.Same(t, a, sharedLimiter(llm.VendorOpenAI, "http://limiter-a", 3, 1), "burst <= 0 means 1")
	assert.Equal(t, 1, a.Burst())
	assert.NotSame(t, a, sharedLimiter(llm.VendorOpenAI, "http://limiter-b", 3, 1))
	assert.NotSame(t, a, sharedLimiter(llm.VendorZAI, "http://limiter-a", 3, 1))
	assert.NotSame(t, a, sharedLimiter(llm.VendorOpenAI, "http://limiter-a", 4, 1))
}
