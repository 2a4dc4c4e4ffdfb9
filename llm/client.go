package llm

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/llmgate/llm/prompts"
	"github.com/BaSui01/llmgate/llm/retry"
	"github.com/BaSui01/llmgate/llm/tokenizer"
	"github.com/BaSui01/llmgate/types"
)

// Client is the contract every vendor client satisfies. None of the
// generate methods return transport errors: every failure is classified
// and reported as a Response with Success() == false.
type Client interface {
	Vendor() Vendor
	Model() string
	TemplateType() prompts.Type

	// Generate renders the client's template type against data and sends it.
	// data["images"] (one or several) turns the rendered text into a
	// structured prompt.
	Generate(ctx context.Context, data map[string]any) *types.Response

	// GenerateFromPrompt bypasses templating.
	GenerateFromPrompt(ctx context.Context, prompt types.Prompt) *types.Response

	// GenerateSimple is the same as GenerateFromPrompt.
	GenerateSimple(ctx context.Context, prompt types.Prompt) *types.Response
}

// CallOptions are per-client request knobs, usually decoded from
// passthrough options.
type CallOptions struct {
	System      string   `mapstructure:"system"`
	MaxTokens   int      `mapstructure:"max_tokens"`
	Temperature *float64 `mapstructure:"temperature"`
}

// DecodeCallOptions reads the known request knobs out of a loose option map.
// Unknown keys are ignored; they belong to the vendor transport.
func DecodeCallOptions(opts map[string]any) (CallOptions, error) {
	var out CallOptions
	if len(opts) == 0 {
		return out, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(opts); err != nil {
		return out, types.NewConfigurationError("invalid call options: %v", err)
	}
	return out, nil
}

// ClientOption configures a BaseClient.
type ClientOption func(*BaseClient)

// WithTemplateType sets the template used by Generate.
func WithTemplateType(t prompts.Type) ClientOption {
	return func(c *BaseClient) { c.templateType = t }
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *BaseClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRetryer sets the retry state machine.
func WithRetryer(r *retry.Retryer) ClientOption {
	return func(c *BaseClient) {
		if r != nil {
			c.retryer = r
		}
	}
}

// WithTokenizer sets the token counter.
func WithTokenizer(t tokenizer.Tokenizer) ClientOption {
	return func(c *BaseClient) {
		if t != nil {
			c.counter = t
		}
	}
}

// WithObserver adds a lifecycle observer.
func WithObserver(o Observer) ClientOption {
	return func(c *BaseClient) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

// WithLimiter gates every attempt through l, which may be shared between
// clients. nil disables limiting.
func WithLimiter(l *rate.Limiter) ClientOption {
	return func(c *BaseClient) { c.limiter = l }
}

// WithMaxInputTokens fails calls whose estimated input exceeds n. 0 disables it.
func WithMaxInputTokens(n int) ClientOption {
	return func(c *BaseClient) { c.maxInputTokens = n }
}

// WithCallOptions sets system prompt, max tokens and temperature.
func WithCallOptions(o CallOptions) ClientOption {
	return func(c *BaseClient) { c.call = o }
}

// WithRequestIDFunc replaces the request id generator.
func WithRequestIDFunc(fn func() string) ClientOption {
	return func(c *BaseClient) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// BaseClient implements Client on top of a Provider. It is immutable after
// construction and safe for concurrent use.
type BaseClient struct {
	provider       Provider
	desc           Descriptor
	model          string
	templateType   prompts.Type
	maxInputTokens int
	call           CallOptions
	counter        tokenizer.Tokenizer
	retryer        *retry.Retryer
	limiter        *rate.Limiter
	observers      Observers
	logger         *zap.Logger
	newID          func() string
}

var _ Client = (*BaseClient)(nil)

// NewClient wraps p for model.
func NewClient(p Provider, model string, opts ...ClientOption) *BaseClient {
	c := &BaseClient{
		provider: p,
		desc:     p.Descriptor(),
		model:    model,
		counter:  tokenizer.NewEstimatorTokenizer(model, 0),
		logger:   zap.NewNop(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retryer == nil {
		c.retryer = retry.New(retry.DefaultPolicy(), c.logger)
	}
	c.logger = c.logger.With(zap.String("model", model))
	return c
}

func (c *BaseClient) Vendor() Vendor             { return c.desc.Vendor }
func (c *BaseClient) Model() string              { return c.model }
func (c *BaseClient) TemplateType() prompts.Type { return c.templateType }

// Descriptor returns the vendor capability record the client formats with.
func (c *BaseClient) Descriptor() Descriptor { return c.desc }

// Generate implements Client.
func (c *BaseClient) Generate(ctx context.Context, data map[string]any) *types.Response {
	prompt, err := c.promptFromTemplate(data)
	if err != nil {
		return c.fail(ctx, err)
	}
	return c.run(ctx, prompt)
}

// GenerateFromPrompt implements Client.
func (c *BaseClient) GenerateFromPrompt(ctx context.Context, prompt types.Prompt) *types.Response {
	return c.run(ctx, prompt)
}

// GenerateSimple implements Client.
func (c *BaseClient) GenerateSimple(ctx context.Context, prompt types.Prompt) *types.Response {
	return c.run(ctx, prompt)
}

func (c *BaseClient) promptFromTemplate(data map[string]any) (types.Prompt, *types.Error) {
	if c.templateType == "" {
		return nil, types.NewPromptError("client was built without a template type")
	}
	text, err := prompts.Render(c.templateType, data)
	if err != nil {
		return nil, types.NewPromptError("render %s: %v", c.templateType, err).WithCause(err)
	}
	raw, ok := data["images"]
	if !ok || raw == nil {
		return types.PlainText(text), nil
	}
	images, err := types.Images(raw)
	if err != nil {
		if te, ok := types.AsError(err); ok {
			return nil, te
		}
		return nil, types.NewPromptError("%v", err)
	}
	return types.Structured{Text: text, Images: images}, nil
}

// fail reports an error raised before any request was attempted.
func (c *BaseClient) fail(ctx context.Context, err *types.Error) *types.Response {
	info := CallInfo{Vendor: c.desc.Vendor, Model: c.model, RequestID: c.requestID(ctx)}
	ctx = c.observers.Begin(ctx, info)
	md := map[string]any{types.MetaRequestID: info.RequestID, types.MetaVendor: string(c.desc.Vendor), types.MetaAttempts: 0}
	return c.finishFailure(ctx, info, err, md, 0, time.Now())
}

func (c *BaseClient) run(ctx context.Context, prompt types.Prompt) *types.Response {
	start := time.Now()
	info := CallInfo{Vendor: c.desc.Vendor, Model: c.model, RequestID: c.requestID(ctx)}
	ctx = c.observers.Begin(ctx, info)
	vendor := string(c.desc.Vendor)
	md := map[string]any{
		types.MetaRequestID: info.RequestID,
		types.MetaVendor:    vendor,
		types.MetaAttempts:  0,
	}

	parts, err := FormatPrompt(c.desc, prompt)
	if err != nil {
		return c.finishFailure(ctx, info, Classify(err), md, 0, start)
	}

	estimated := tokenizer.Count(c.counter, ExtractText(parts))
	md[types.MetaEstimatedInputTokens] = estimated
	if c.maxInputTokens > 0 && estimated > c.maxInputTokens {
		return c.finishFailure(ctx, info, types.NewTokenLimitError(estimated, c.maxInputTokens), md, 0, start)
	}

	req := &ChatRequest{
		Model:       c.model,
		System:      c.call.System,
		Parts:       parts,
		MaxTokens:   c.call.MaxTokens,
		Temperature: c.call.Temperature,
	}

	res, stats := retry.Do(ctx, c.retryer, func(ctx context.Context, attempt int) retry.Result[*ChatResponse] {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Fail[*ChatResponse](limiterError(ctx, err).WithVendor(vendor))
			}
		}
		c.logger.Debug("sending request", zap.Int("attempt", attempt), zap.Int("parts", len(parts)))
		resp, err := c.provider.Completion(ctx, req)
		if err != nil {
			return retry.Fail[*ChatResponse](tagVendor(Classify(err), vendor))
		}
		return retry.OK(resp)
	})
	md[types.MetaAttempts] = stats.Attempts

	if res.Err != nil {
		return c.finishFailure(ctx, info, res.Err, md, stats.Attempts, start)
	}

	resp := res.Value
	usage := types.Usage{InputTokens: estimated, OutputTokens: resp.Usage.CompletionTokens}
	if resp.Usage.PromptTokens > 0 {
		usage.InputTokens = resp.Usage.PromptTokens
	}
	if usage.OutputTokens == 0 {
		usage.OutputTokens = tokenizer.Count(c.counter, resp.Text)
	}
	if resp.FinishReason != "" {
		md[types.MetaFinishReason] = resp.FinishReason
	}
	if resp.ID != "" {
		md[types.MetaResponseID] = resp.ID
	}
	model := c.model
	if resp.Model != "" {
		model = resp.Model
	}

	elapsed := time.Since(start)
	md[types.MetaLatencyMS] = elapsed.Milliseconds()
	c.logger.Info("generate succeeded",
		zap.String("request_id", info.RequestID),
		zap.Int("attempts", stats.Attempts),
		zap.Int("input_tokens", usage.InputTokens),
		zap.Int("output_tokens", usage.OutputTokens),
		zap.Duration("latency", elapsed),
	)
	c.observers.End(ctx, info, CallOutcome{
		Success:      true,
		Attempts:     stats.Attempts,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		Duration:     elapsed,
	})
	return types.NewSuccess(resp.Text, model, vendor, usage, md)
}

func (c *BaseClient) finishFailure(ctx context.Context, info CallInfo, err *types.Error, md map[string]any, attempts int, start time.Time) *types.Response {
	if err.Vendor == "" {
		err = tagVendor(err, string(c.desc.Vendor))
	}
	elapsed := time.Since(start)
	md[types.MetaLatencyMS] = elapsed.Milliseconds()
	c.logger.Warn("generate failed",
		zap.String("request_id", info.RequestID),
		zap.String("kind", string(err.Kind)),
		zap.String("reason", string(err.Reason)),
		zap.Int("http_status", err.HTTPStatus),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)
	c.observers.End(ctx, info, CallOutcome{
		ErrorKind:   string(err.Kind),
		ErrorReason: string(err.Reason),
		Attempts:    attempts,
		Duration:    elapsed,
	})
	return types.NewFailure(c.model, string(c.desc.Vendor), err, md)
}

// requestID prefers an id pinned on ctx over a generated one.
func (c *BaseClient) requestID(ctx context.Context) string {
	if id, ok := types.RequestID(ctx); ok {
		return id
	}
	return c.newID()
}

// tagVendor returns err stamped with vendor. Classify hands back caller-owned
// *types.Error values as is, so the stamp goes on a copy.
func tagVendor(err *types.Error, vendor string) *types.Error {
	if err.Vendor == vendor {
		return err
	}
	tagged := *err
	tagged.Vendor = vendor
	return &tagged
}

func limiterError(ctx context.Context, err error) *types.Error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Classify(ctxErr)
	}
	// rate.Limiter refuses to wait past the context deadline.
	return types.NewTransportError(types.ReasonTimeout, "rate limiter wait exceeds deadline").WithCause(err)
}
