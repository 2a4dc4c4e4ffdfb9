// =============================================================================
// Package quick: one-call completions
// =============================================================================
// Caller-facing entry points on top of llm/factory. Configuration defaults to
// config.Global() (LLMGATE_CONFIG file plus environment); pass WithConfig to
// thread an explicit value instead.
//
// Usage:
//
//	import "github.com/BaSui01/llmgate/quick"
//
//	resp, err := quick.Generate(ctx, quick.Request{Model: "gpt-4o-mini", Prompt: types.PlainText("Hello")})
//	resp, err := quick.Generate(ctx, quick.Request{Model: "claude-3-5-sonnet", Type: "summarize_text", Data: data})
//	client, err := quick.BuildClient("gemini-1.5-flash", quick.WithAPIKey(key))
//
// =============================================================================
package quick

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/llmgate/config"
	"github.com/BaSui01/llmgate/llm"
	"github.com/BaSui01/llmgate/llm/factory"
	"github.com/BaSui01/llmgate/types"
)

// Option configures BuildClient and Generate.
type Option func(*options)

type options struct {
	cfg          *config.Config
	vendor       string
	templateType string
	apiKey       string
	systemPrompt string
	factoryOpts  []factory.Option
}

// WithConfig uses cfg instead of the process-wide configuration.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithVendor pins the vendor instead of inferring it from the model name.
func WithVendor(vendor string) Option {
	return func(o *options) { o.vendor = vendor }
}

// WithType sets the prompt template used by Client.Generate.
func WithType(templateType string) Option {
	return func(o *options) { o.templateType = templateType }
}

// WithAPIKey overrides the configured API key of the resolved vendor.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithSystemPrompt sets the system prompt sent with every call.
func WithSystemPrompt(prompt string) Option {
	return func(o *options) { o.systemPrompt = prompt }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.factoryOpts = append(o.factoryOpts, factory.WithLogger(logger)) }
}

// WithFactoryOptions passes options straight to factory.Build.
func WithFactoryOptions(opts ...factory.Option) Option {
	return func(o *options) { o.factoryOpts = append(o.factoryOpts, opts...) }
}

// BuildClient resolves the vendor for model and builds a fresh client.
func BuildClient(model string, opts ...Option) (llm.Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o.build(model)
}

func (o *options) build(model string) (llm.Client, error) {
	cfg := o.cfg
	if cfg == nil {
		var err error
		if cfg, err = config.Global(); err != nil {
			return nil, types.NewConfigurationError("load configuration: %v", err).WithCause(err)
		}
	}

	fopts := o.factoryOpts
	if o.systemPrompt != "" {
		fopts = append(fopts, factory.WithVendorOptions(map[string]any{"system": o.systemPrompt}))
	}
	if o.apiKey != "" {
		v, err := factory.ResolveVendor(model, o.vendor)
		if err != nil {
			return nil, err
		}
		cfg = withAPIKey(cfg, string(v), o.apiKey)
	}

	client, err := factory.Build(model, o.templateType, o.vendor, cfg, fopts...)
	if err != nil {
		return nil, fmt.Errorf("build client for %q: %w", model, err)
	}
	return client, nil
}

// withAPIKey returns a copy of cfg whose vendor entry carries key.
func withAPIKey(cfg *config.Config, vendor, key string) *config.Config {
	out := *cfg
	out.Vendors = maps.Clone(cfg.Vendors)
	vc, _ := cfg.Vendor(vendor)
	vc.APIKey = key
	out.SetVendor(vendor, vc)
	return &out
}

// Request is one Generate call. Exactly one of Prompt or (Data and Type)
// must be set.
type Request struct {
	Model  string
	Prompt types.Prompt
	Data   map[string]any
	Type   string
	Vendor string
}

func (r Request) validate() error {
	hasPrompt := r.Prompt != nil
	hasTemplate := r.Data != nil || strings.TrimSpace(r.Type) != ""
	switch {
	case hasPrompt && hasTemplate:
		return fmt.Errorf("%w: prompt and data/type are mutually exclusive", types.ErrInvalidArgument)
	case !hasPrompt && !hasTemplate:
		return fmt.Errorf("%w: either prompt or data and type is required", types.ErrInvalidArgument)
	case !hasPrompt && (r.Data == nil || strings.TrimSpace(r.Type) == ""):
		return fmt.Errorf("%w: data and type must be supplied together", types.ErrInvalidArgument)
	}
	return nil
}

// Generate validates req, builds a client and runs one completion. Argument
// and build errors are returned; vendor failures come back as a Response
// with Success() == false.
func Generate(ctx context.Context, req Request, opts ...Option) (*types.Response, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if req.Vendor != "" {
		o.vendor = req.Vendor
	}
	if req.Type != "" {
		o.templateType = req.Type
	}

	client, err := o.build(req.Model)
	if err != nil {
		return nil, err
	}
	if req.Prompt != nil {
		return client.GenerateFromPrompt(ctx, req.Prompt), nil
	}
	return client.Generate(ctx, req.Data), nil
}
