package llm_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/BaSui01/llmgate/llm"
	"github.com/BaSui01/llmgate/llm/prompts"
	"github.com/BaSui01/llmgate/llm/retry"
	"github.com/BaSui01/llmgate/testutil"
	"github.com/BaSui01/llmgate/testutil/mocks"
	"github.com/BaSui01/llmgate/types"
)

func fastRetryer(attempts int) *retry.Retryer {
	return retry.New(retry.Policy{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}, nil, retry.WithSleep(func(context.Context, time.Duration) error { return nil }))
}

type recordingObserver struct {
	mu       sync.Mutex
	begins   int
	outcomes []llm.CallOutcome
}

func (o *recordingObserver) Begin(ctx context.Context, _ llm.CallInfo) context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.begins++
	return ctx
}

func (o *recordingObserver) End(_ context.Context, _ llm.CallInfo, out llm.CallOutcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, out)
}

func TestBaseClient_GenerateFromPrompt_Success(t *testing.T) {
	p := mocks.NewMockProvider(mocks.TextDescriptor(llm.VendorOpenAI)).
		WithResponse("Hi").
		WithTokenUsage(3, 1)
	obs := &recordingObserver{}
	c := llm.NewClient(p, "gpt-4o-mini",
		llm.WithRetryer(fastRetryer(3)),
		llm.WithObserver(obs),
		llm.WithRequestIDFunc(func() string { return "req-1" }),
	)

	resp := c.GenerateFromPrompt(testutil.TestContext(t), types.PlainText("Hello"))

	assert.Equal(t, "Hi", testutil.AssertSuccess(t, resp))
	assert.Equal(t, 3, resp.InputTokens())
	assert.Equal(t, 1, resp.OutputTokens())
	assert.Equal(t, "openai", resp.Vendor())
	assert.Equal(t, "gpt-4o-mini", resp.Model())

	md := resp.Metadata()
	assert.Equal(t, "req-1", md[types.MetaRequestID])
	assert.Equal(t, 1, md[types.MetaAttempts])
	assert.Equal(t, "stop", md[types.MetaFinishReason])
	assert.Equal(t, "mock-response-id", md[types.MetaResponseID])

	req := p.LastRequest()
	require.NotNil(t, req)
	require.Len(t, req.Parts, 1)
	assert.Equal(t, "Hello", req.Parts[0].Text)

	require.Len(t, obs.outcomes, 1)
	assert.True(t, obs.outcomes[0].Success)
	assert.Equal(t, 1, obs.begins)
}

func TestBaseClient_RequestIDFromContext(t *testing.T) {
	p := mocks.NewMockProvider(mocks.TextDescriptor(llm.VendorOpenAI))
	c := llm.NewClient(p, "gpt-4o-mini",
		llm.WithRetryer(fastRetryer(1)),
		llm.WithRequestIDFunc(func() string { return "generated" }),
	)

	ctx := types.WithRequestID(testutil.TestContext(t), "caller-42")
	resp := c.GenerateSimple(ctx, types.PlainText("Hello"))
	assert.Equal(t, "caller-42", resp.Metadata()[types.MetaRequestID])

	resp = c.GenerateSimple(testutil.TestContext(t), types.PlainText("Hello"))
	assert.Equal(t, "generated", resp.Metadata()[types.MetaRequestID])
}

func TestBaseClient_UsageFallsBackToEstimate(t *testing.T) {
	p := mocks.NewMockProvider(mocks.TextDescriptor(llm.VendorOllama)).
		WithResponse("four token answer here").
		WithTokenUsage(0, 0)
	c := llm.NewClient(p, "llama3.2-vision", llm.WithRetryer(fastRetryer(1)))

	resp := c.GenerateSimple(testutil.TestContext(t), types.PlainText("count me please"))

	testutil.AssertSuccess(t, resp)
	assert.Positive(t, resp.InputTokens())
	assert.Positive(t, resp.OutputTokens())
	est, ok := resp.Meta(types.MetaEstimatedInputTokens)
	require.True(t, ok)
	assert.Equal(t, est, resp.InputTokens())
}

func TestBaseClient_RetriesThenSucceeds(t *testing.T) {
	p := mocks.NewMockProvider(mocks.TextDescriptor(llm.VendorOpenAI)).
		WithErrors(&llm.HTTPError{StatusCode: 503}, &llm.HTTPError{StatusCode: 429}).
		WithResponse("ok")
	c := llm.NewClient(p, "gpt-4o", llm.WithRetryer(fastRetryer(3)))

	resp := c.GenerateFromPrompt(testutil.TestContext(t), types.PlainText("x"))

	assert.Equal(t, "ok", testutil.AssertSuccess(t, resp))
	assert.Equal(t, 3, p.CallCount())
	assert.Equal(t, 3, resp.Metadata()[types.MetaAttempts])
}

func TestBaseClient_RateLimitExhaustion(t *testing.T) {
	p := mocks.NewMockProvider(mocks.TextDescriptor(llm.VendorOpenAI)).
		WithError(&llm.HTTPError{StatusCode: 429, Message: "slow down"})
	obs := &recordingObserver{}
	c := llm.NewClient(p, "gpt-4o", llm.WithRetryer(fastRetryer(4)), llm.WithObserver(obs))

	resp := c.GenerateFromPrompt(testutil.TestContext(t), types.PlainText("x"))

	info := testutil.AssertFailure(t, resp, types.KindTransport, types.ReasonRateLimit)
	assert.Equal(t, 429, info.HTTPStatus)
	assert.True(t, info.Retryable)
	assert.Equal(t, 4, p.CallCount())
	assert.Equal(t, "", resp.Output())

	var te *types.Error
	require.ErrorAs(t, resp.Err(), &te)
	assert.Equal(t, "openai", te.Vendor)

	require.Len(t, obs.outcomes, 1)
	assert.Equal(t, "rate_limit", obs.outcomes[0].Status())
	assert.Equal(t, 4, obs.outcomes[0].Attempts)
}

func TestBaseClient_FatalErrorIsNotRetried(t *testing.T) {
	p := mocks.NewMockProvider(mocks.TextDescriptor(llm.VendorAnthropic)).
		WithError(&llm.HTTPError{StatusCode: 401})
	c := llm.NewClient(p, "claude-3-opus", llm.WithRetryer(fastRetryer(5)))

	resp := c.GenerateFromPrompt(testutil.TestContext(t), types.PlainText("x"))

	testutil.AssertFailure(t, resp, types.KindTransport, types.ReasonAuthFailure)
	assert.Equal(t, 1, p.CallCount())
}

func TestBaseClient_TokenLimitBeforeRequest(t *testing.T) {
	p := mocks.NewMockProvider(mocks.TextDescriptor(llm.VendorOpenAI))
	c := llm.NewClient(p, "gpt-4", llm.WithMaxInputTokens(5))

	resp := c.GenerateFromPrompt(testutil.TestContext(t), types.PlainText("this prompt is certainly longer than five tokens of text"))

	testutil.AssertFailure(t, resp, types.KindTokenLimit, "")
	assert.Zero(t, p.CallCount())
}

func TestBaseClient_PromptErrorNoRequest(t *testing.T) {
	p := mocks.NewMockProvider(mocks.TextDescriptor(llm.VendorOpenAI))
	c := llm.NewClient(p, "gpt-4")

	resp := c.GenerateFromPrompt(testutil.TestContext(t), types.Structured{})
	testutil.AssertFailure(t, resp, types.KindPrompt, "")

	resp = c.GenerateFromPrompt(testutil.TestContext(t), types.RawParts{{"type": "image", "source": map[string]any{}}})
	testutil.AssertFailure(t, resp, types.KindPrompt, "")

	assert.Zero(t, p.CallCount())
}

func TestBaseClient_Generate(t *testing.T) {
	p := mocks.NewMockProvider(mocks.TextDescriptor(llm.VendorOpenAI)).WithResponse("summary")
	c := llm.NewClient(p, "gpt-4o-mini",
		llm.WithTemplateType(prompts.SummarizeText),
		llm.WithCallOptions(llm.CallOptions{System: "be brief", MaxTokens: 64}),
	)

	resp := c.Generate(testutil.TestContext(t), map[string]any{
		"text":   "a long article",
		"images": []string{"http://x/a.png"},
	})

	assert.Equal(t, "summary", testutil.AssertSuccess(t, resp))
	req := p.LastRequest()
	require.Len(t, req.Parts, 2)
	assert.Contains(t, req.Parts[0].Text, "a long article")
	assert.Equal(t, types.PartImage, req.Parts[1].Kind)
	assert.Equal(t, "be brief", req.System)
	assert.Equal(t, 64, req.MaxTokens)
}

func TestBaseClient_GenerateTemplateErrors(t *testing.T) {
	p := mocks.NewMockProvider(mocks.TextDescriptor(llm.VendorOpenAI))

	noTemplate := llm.NewClient(p, "gpt-4o-mini")
	testutil.AssertFailure(t, noTemplate.Generate(testutil.TestContext(t), map[string]any{"text": "x"}), types.KindPrompt, "")

	c := llm.NewClient(p, "gpt-4o-mini", llm.WithTemplateType(prompts.ClassifyContent))
	testutil.AssertFailure(t, c.Generate(testutil.TestContext(t), map[string]any{"content": "x"}), types.KindPrompt, "")

	bad := llm.NewClient(p, "gpt-4o-mini", llm.WithTemplateType(prompts.SummarizeText))
	testutil.AssertFailure(t, bad.Generate(testutil.TestContext(t), map[string]any{"text": "x", "images": 42}), types.KindPrompt, "")

	assert.Zero(t, p.CallCount())
}

func TestBaseClient_Canceled(t *testing.T) {
	p := mocks.NewMockProvider(mocks.TextDescriptor(llm.VendorOpenAI)).WithDelay(time.Second)
	c := llm.NewClient(p, "gpt-4o", llm.WithRetryer(fastRetryer(3)))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	resp := c.GenerateFromPrompt(ctx, types.PlainText("x"))

	testutil.AssertFailure(t, resp, types.KindTransport, types.ReasonCanceled)
	assert.Equal(t, 1, p.CallCount())
}

func TestBaseClient_RateLimiter(t *testing.T) {
	p := mocks.NewMockProvider(mocks.TextDescriptor(llm.VendorOpenAI))
	c := llm.NewClient(p, "gpt-4o", llm.WithLimiter(rate.NewLimiter(1, 1)))

	testutil.AssertSuccess(t, c.GenerateFromPrompt(testutil.TestContext(t), types.PlainText("first")))

	ctx := testutil.TestContextWithTimeout(t, 50*time.Millisecond)
	resp := c.GenerateFromPrompt(ctx, types.PlainText("second"))
	testutil.AssertFailure(t, resp, types.KindTransport, types.ReasonTimeout)
	assert.Equal(t, 1, p.CallCount())
}

func TestBaseClient_LogsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := mocks.NewMockProvider(mocks.TextDescriptor(llm.VendorOpenAI)).WithError(errors.New("boom"))
	c := llm.NewClient(p, "gpt-4o", llm.WithLogger(zap.New(core)), llm.WithRetryer(fastRetryer(2)))

	testutil.AssertFailure(t, c.GenerateFromPrompt(context.Background(), types.PlainText("x")), types.KindTransport, types.ReasonUnknown)

	entries := logs.FilterMessage("generate failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "unknown", entries[0].ContextMap()["reason"])
	assert.Equal(t, "gpt-4o", entries[0].ContextMap()["model"])
}

func TestDecodeCallOptions(t *testing.T) {
	opts, err := llm.DecodeCallOptions(map[string]any{"system": "s", "max_tokens": "128", "temperature": 0.2, "http_referer": "x"})
	require.NoError(t, err)
	assert.Equal(t, "s", opts.System)
	assert.Equal(t, 128, opts.MaxTokens)
	require.NotNil(t, opts.Temperature)
	assert.InDelta(t, 0.2, *opts.Temperature, 1e-9)

	_, err = llm.DecodeCallOptions(map[string]any{"max_tokens": []int{1}})
	assert.Equal(t, types.KindConfiguration, types.KindOf(err))
}

func TestBaseClient_SharedProviderErrorNotMutated(t *testing.T) {
	shared := types.NewTransportError(types.ReasonBadRequest, "unsupported parameter").WithHTTPStatus(400)

	vendors := []llm.Vendor{llm.VendorOpenAI, llm.VendorZAI, llm.VendorOpenRouter}
	resps := make([]*types.Response, len(vendors))
	var wg sync.WaitGroup
	for i, v := range vendors {
		p := mocks.NewMockProvider(mocks.TextDescriptor(v)).WithError(shared)
		c := llm.NewClient(p, "m", llm.WithRetryer(fastRetryer(1)))
		wg.Add(1)
		go func() {
			defer wg.Done()
			resps[i] = c.GenerateSimple(context.Background(), types.PlainText("x"))
		}()
	}
	wg.Wait()

	for i, resp := range resps {
		testutil.AssertFailure(t, resp, types.KindTransport, types.ReasonBadRequest)
		assert.Equal(t, string(vendors[i]), resp.Vendor())
	}
	assert.Empty(t, shared.Vendor)
	assert.Equal(t, 400, shared.HTTPStatus)
}
