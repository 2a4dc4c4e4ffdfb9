package factory

import (
	"fmt"
	"maps"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/llmgate/config"
	"github.com/BaSui01/llmgate/internal/logging"
	"github.com/BaSui01/llmgate/llm"
	"github.com/BaSui01/llmgate/llm/prompts"
	"github.com/BaSui01/llmgate/llm/providers"
	"github.com/BaSui01/llmgate/llm/providers/anthropic"
	"github.com/BaSui01/llmgate/llm/providers/gemini"
	"github.com/BaSui01/llmgate/llm/providers/ollama"
	"github.com/BaSui01/llmgate/llm/providers/openai"
	"github.com/BaSui01/llmgate/llm/providers/openrouter"
	"github.com/BaSui01/llmgate/llm/providers/zai"
	"github.com/BaSui01/llmgate/llm/retry"
	"github.com/BaSui01/llmgate/llm/tokenizer"
	"github.com/BaSui01/llmgate/types"
)

// =============================================================================
// 🗂️ 厂商注册表
// =============================================================================

type entry struct {
	descriptor func() llm.Descriptor
	build      func(providers.Config) (llm.Provider, error)
}

var registry = map[llm.Vendor]entry{
	llm.VendorOpenAI: {
		descriptor: openai.Descriptor,
		build:      func(c providers.Config) (llm.Provider, error) { return openai.New(c) },
	},
	llm.VendorAnthropic: {
		descriptor: anthropic.Descriptor,
		build:      func(c providers.Config) (llm.Provider, error) { return anthropic.New(c) },
	},
	llm.VendorOllama: {
		descriptor: ollama.Descriptor,
		build:      func(c providers.Config) (llm.Provider, error) { return ollama.New(c), nil },
	},
	llm.VendorOpenRouter: {
		descriptor: openrouter.Descriptor,
		build:      func(c providers.Config) (llm.Provider, error) { return openrouter.New(c) },
	},
	llm.VendorGemini: {
		descriptor: gemini.Descriptor,
		build:      func(c providers.Config) (llm.Provider, error) { return gemini.New(c), nil },
	},
	llm.VendorZAI: {
		descriptor: zai.Descriptor,
		build:      func(c providers.Config) (llm.Provider, error) { return zai.New(c), nil },
	},
}

// SupportedVendors 返回受支持的厂商，顺序稳定
func SupportedVendors() []llm.Vendor {
	return llm.Vendors()
}

// Descriptors 返回全部厂商的能力描述
func Descriptors() []llm.Descriptor {
	return lo.Map(SupportedVendors(), func(v llm.Vendor, _ int) llm.Descriptor {
		return registry[v].descriptor()
	})
}

// Descriptor 返回单个厂商的能力描述
func Descriptor(v llm.Vendor) (llm.Descriptor, bool) {
	e, ok := registry[v]
	if !ok {
		return llm.Descriptor{}, false
	}
	return e.descriptor(), true
}

// =============================================================================
// 🔎 厂商推断
// =============================================================================

type rule struct {
	vendor llm.Vendor
	match  func(model string) bool
}

var openAIReasoning = regexp.MustCompile(`^o\d`)

func contains(sub string) func(string) bool {
	return func(m string) bool { return strings.Contains(m, sub) }
}

// 顺序即优先级，首个命中者胜出；命名空间形式 org/model 最先判断
var inferenceRules = []rule{
	{llm.VendorOpenRouter, contains("/")},
	{llm.VendorAnthropic, contains("claude")},
	{llm.VendorGemini, contains("gemini")},
	{llm.VendorZAI, contains("glm")},
	{llm.VendorOpenAI, func(m string) bool {
		return strings.Contains(m, "gpt") || openAIReasoning.MatchString(m) || strings.HasPrefix(m, "chatgpt")
	}},
}

// InferVendor 按模型名推断厂商，未命中任何模式时回落到本地 ollama
func InferVendor(model string) llm.Vendor {
	m := strings.ToLower(strings.TrimSpace(model))
	for _, r := range inferenceRules {
		if r.match(m) {
			return r.vendor
		}
	}
	return llm.VendorOllama
}

// =============================================================================
// 🏭 客户端构建
// =============================================================================

// Option 透传到构建出的客户端
type Option func(*options)

type options struct {
	logger        *zap.Logger
	policy        *retry.Policy
	retryOpts     []retry.Option
	tokenizer     tokenizer.Tokenizer
	observers     []llm.Observer
	httpClient    *http.Client
	vendorOptions map[string]any
	requestID     func() string
}

// WithLogger 设置基础日志器，厂商 log_level 在其上提高下限
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRetryPolicy 覆盖配置中的重试策略
func WithRetryPolicy(p retry.Policy) Option {
	return func(o *options) { o.policy = &p }
}

// WithRetryOptions 传递重试器选项（如测试中替换 sleep）
func WithRetryOptions(opts ...retry.Option) Option {
	return func(o *options) { o.retryOpts = append(o.retryOpts, opts...) }
}

// WithTokenizer 覆盖配置中的 token 计数器
func WithTokenizer(t tokenizer.Tokenizer) Option {
	return func(o *options) { o.tokenizer = t }
}

// WithObserver 追加调用观察者（指标、追踪）
func WithObserver(obs ...llm.Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs...) }
}

// WithHTTPClient 替换厂商 HTTP 客户端
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithVendorOptions 合并额外的厂商选项，覆盖配置文件中的同名键
func WithVendorOptions(m map[string]any) Option {
	return func(o *options) {
		if o.vendorOptions == nil {
			o.vendorOptions = make(map[string]any, len(m))
		}
		maps.Copy(o.vendorOptions, m)
	}
}

// WithRequestIDFunc 替换 request_id 生成函数
func WithRequestIDFunc(fn func() string) Option {
	return func(o *options) { o.requestID = fn }
}

// ResolveVendor 解析显式厂商；为空时由模型名推断，此时 model 不能为空
func ResolveVendor(model, vendor string) (llm.Vendor, error) {
	if strings.TrimSpace(vendor) != "" {
		return llm.ParseVendor(vendor)
	}
	if strings.TrimSpace(model) == "" {
		return "", fmt.Errorf("%w: model is required when vendor is omitted", types.ErrInvalidArgument)
	}
	return InferVendor(model), nil
}

// Build 解析厂商并构建全新的客户端，不做任何缓存。
// 调用方错误（未知厂商、缺失 API Key、未知模板类型）同步返回。
// cfg 为 nil 时使用默认配置。
func Build(model, templateType, vendor string, cfg *config.Config, opts ...Option) (llm.Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	base := o.logger
	if base == nil {
		base = zap.NewNop()
	}

	v, err := ResolveVendor(model, vendor)
	if err != nil {
		return nil, err
	}
	e, ok := registry[v]
	if !ok {
		return nil, types.NewUnsupportedVendorError(string(v))
	}
	desc := e.descriptor()

	var tt prompts.Type
	if templateType != "" {
		if !prompts.Supported(templateType) {
			return nil, types.NewPromptError("unsupported template type %q", templateType)
		}
		tt = prompts.Type(templateType)
	}

	vc, _ := cfg.Vendor(string(v))
	if desc.Auth.RequiresKey() && strings.TrimSpace(vc.APIKey) == "" {
		return nil, types.NewConfigurationError("api_key is required for vendor %s", v).WithVendor(string(v))
	}

	model = strings.TrimSpace(model)
	if model == "" {
		model = lo.CoalesceOrEmpty(vc.DefaultModel, desc.DefaultModel)
	}

	logger := logging.ForVendor(base, string(v), vc.LogLevel)

	vendorOpts := make(map[string]any, len(vc.Options)+len(o.vendorOptions))
	maps.Copy(vendorOpts, vc.Options)
	maps.Copy(vendorOpts, o.vendorOptions)

	callOpts, err := llm.DecodeCallOptions(vendorOpts)
	if err != nil {
		return nil, err
	}

	provider, err := e.build(providers.Config{
		APIKey:     vc.APIKey,
		BaseURL:    vc.BaseURL,
		Timeout:    vc.EffectiveTimeout(),
		Options:    vendorOpts,
		HTTPClient: o.httpClient,
		Logger:     logger,
	})
	if err != nil {
		return nil, types.NewConfigurationError("vendor %s: %v", v, err).WithCause(err).WithVendor(string(v))
	}

	policy := retry.PolicyFromConfig(cfg.Retry)
	if o.policy != nil {
		policy = *o.policy
	}
	tok := o.tokenizer
	if tok == nil {
		tok = tokenizer.New(cfg.Tokenizer, model)
	}

	clientOpts := []llm.ClientOption{
		llm.WithTemplateType(tt),
		llm.WithLogger(logger),
		llm.WithRetryer(retry.New(policy, logger, o.retryOpts...)),
		llm.WithTokenizer(tok),
		llm.WithLimiter(sharedLimiter(v, lo.CoalesceOrEmpty(vc.BaseURL, desc.BaseURL), vc.RequestsPerSecond, vc.Burst)),
		llm.WithMaxInputTokens(vc.MaxInputTokens),
		llm.WithCallOptions(callOpts),
	}
	for _, obs := range o.observers {
		clientOpts = append(clientOpts, llm.WithObserver(obs))
	}
	if o.requestID != nil {
		clientOpts = append(clientOpts, llm.WithRequestIDFunc(o.requestID))
	}

	logger.Debug("client built",
		zap.String("model", model),
		zap.String("base_url", lo.CoalesceOrEmpty(vc.BaseURL, desc.BaseURL)),
		zap.String("template_type", string(tt)),
		zap.Bool("inferred_vendor", strings.TrimSpace(vendor) == ""))

	return llm.NewClient(provider, model, clientOpts...), nil
}

// =============================================================================
// 🚦 共享限流器
// =============================================================================

type limiterKey struct {
	vendor  llm.Vendor
	baseURL string
	rps     float64
	burst   int
}

var (
	limitersMu sync.Mutex
	limiters   = map[limiterKey]*rate.Limiter{}
)

// sharedLimiter 返回同一厂商端点与限流参数共用的令牌桶，rps <= 0 返回 nil。
// 每次 Build 都产生新客户端，限流状态因此保存在进程级表中。
func sharedLimiter(v llm.Vendor, baseURL string, rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	key := limiterKey{vendor: v, baseURL: baseURL, rps: rps, burst: burst}

	limitersMu.Lock()
	defer limitersMu.Unlock()
	l, ok := limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(rps), burst)
		limiters[key] = l
	}
	return l
}
