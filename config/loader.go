// =============================================================================
// 📦 llmgate 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML / TOML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("llmgate.yaml").
//	    WithEnvPrefix("LLMGATE").
//	    Load()
//
// 配置优先级: 默认值 → 配置文件 → 环境变量 → 厂商惯用环境变量（仅补空）
// =============================================================================
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 llmgate 的完整配置结构
type Config struct {
	// Vendors 按厂商名（小写）索引的厂商配置
	Vendors map[string]VendorConfig `yaml:"vendors" env:"VENDORS"`

	// Retry 出站调用的重试策略
	Retry RetryConfig `yaml:"retry" env:"RETRY"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Metrics Prometheus 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`

	// Tokenizer token 计数器: estimator, tiktoken
	Tokenizer string `yaml:"tokenizer" env:"TOKENIZER"`
}

// VendorConfig 单个厂商的配置
type VendorConfig struct {
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL 覆盖（可选）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 单次 HTTP 请求超时，支持 "30"（秒）或 "1m30s"
	Timeout Duration `yaml:"timeout" env:"TIMEOUT"`
	// 调用方省略 model 时使用的默认模型
	DefaultModel string `yaml:"default_model" env:"DEFAULT_MODEL"`
	// 该厂商客户端的日志级别下限
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
	// 输入 token 上限，0 表示不限制
	MaxInputTokens int `yaml:"max_input_tokens" env:"MAX_INPUT_TOKENS"`
	// 每秒请求数，0 表示不限流；同一厂商端点的所有客户端共用一个令牌桶
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	// 令牌桶容量
	Burst int `yaml:"burst" env:"BURST"`
	// 透传给厂商客户端的额外选项
	Options map[string]any `yaml:"options" env:"-"`
}

// RetryConfig 重试配置
type RetryConfig struct {
	// 最大尝试次数（含首次）
	MaxAttempts int `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	// 初始退避
	InitialDelay Duration `yaml:"initial_delay" env:"INITIAL_DELAY"`
	// 最大退避
	MaxDelay Duration `yaml:"max_delay" env:"MAX_DELAY"`
	// 退避倍数
	Multiplier float64 `yaml:"multiplier" env:"MULTIPLIER"`
	// 是否添加随机抖动
	Jitter bool `yaml:"jitter" env:"JITTER"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
	// CLI 暴露 /metrics 的监听地址（为空则不暴露）
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR"`
}

// Vendor 返回指定厂商的配置，名称大小写不敏感
func (c *Config) Vendor(name string) (VendorConfig, bool) {
	if c == nil || c.Vendors == nil {
		return VendorConfig{}, false
	}
	vc, ok := c.Vendors[strings.ToLower(strings.TrimSpace(name))]
	return vc, ok
}

// SetVendor 设置厂商配置
func (c *Config) SetVendor(name string, vc VendorConfig) {
	if c.Vendors == nil {
		c.Vendors = make(map[string]VendorConfig)
	}
	c.Vendors[strings.ToLower(strings.TrimSpace(name))] = vc
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	lookupEnv  func(string) (string, bool)
	environ    func() []string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "LLMGATE",
		lookupEnv:  os.LookupEnv,
		environ:    os.Environ,
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径，.toml 后缀按 TOML 解析，其余按 YAML
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithEnv 使用给定的环境变量表替代进程环境（测试用）
func (l *Loader) WithEnv(env map[string]string) *Loader {
	l.lookupEnv = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	l.environ = func() []string {
		out := make([]string, 0, len(env))
		for k, v := range env {
			out = append(out, k+"="+v)
		}
		return out
	}
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 厂商惯用环境变量只填补空缺
	l.applyConventionalEnv(cfg)

	// 5. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML / TOML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(l.configPath)) {
	case ".toml":
		err = decodeTOML(data, cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.normalizeVendorKeys()
	return nil
}

// decodeTOML 先解码为通用 map，再经 mapstructure 写入 Config，
// 复用 yaml tag 并通过 hook 处理 Duration
func decodeTOML(data []byte, cfg *Config) error {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return err
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook:       durationHook,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

func (c *Config) normalizeVendorKeys() {
	if len(c.Vendors) == 0 {
		return
	}
	normalized := make(map[string]VendorConfig, len(c.Vendors))
	for name, vc := range c.Vendors {
		normalized[strings.ToLower(strings.TrimSpace(name))] = vc
	}
	c.Vendors = normalized
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// map[string]struct: PREFIX_<KEY>_<FIELD>
		if field.Kind() == reflect.Map && field.Type().Key().Kind() == reflect.String &&
			field.Type().Elem().Kind() == reflect.Struct {
			if err := l.setMapFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue, ok := l.lookupEnv(envKey)
		if !ok || envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setMapFromEnv 扫描以 prefix_ 开头的环境变量，按 key 聚合后写入 map
func (l *Loader) setMapFromEnv(field reflect.Value, prefix string) error {
	keys := make(map[string]struct{})
	elemType := field.Type().Elem()
	for _, kv := range l.environ() {
		name, _, _ := strings.Cut(kv, "=")
		rest, ok := strings.CutPrefix(name, prefix+"_")
		if !ok {
			continue
		}
		for i := 0; i < elemType.NumField(); i++ {
			tag := elemType.Field(i).Tag.Get("env")
			if tag == "" || tag == "-" {
				continue
			}
			if key, ok := strings.CutSuffix(rest, "_"+tag); ok && key != "" {
				keys[key] = struct{}{}
			}
		}
	}
	if len(keys) == 0 {
		return nil
	}

	if field.IsNil() {
		field.Set(reflect.MakeMap(field.Type()))
	}
	for key := range keys {
		mapKey := reflect.ValueOf(strings.ToLower(key))
		elem := reflect.New(elemType).Elem()
		if existing := field.MapIndex(mapKey); existing.IsValid() {
			elem.Set(existing)
		}
		if err := l.setFieldsFromEnv(elem, prefix+"_"+key); err != nil {
			return err
		}
		field.SetMapIndex(mapKey, elem)
	}
	return nil
}

// conventionalEnv 各厂商 SDK 惯用的环境变量
var conventionalEnv = map[string]struct{ apiKey, baseURL string }{
	"openai":     {apiKey: "OPENAI_API_KEY", baseURL: "OPENAI_BASE_URL"},
	"anthropic":  {apiKey: "ANTHROPIC_API_KEY", baseURL: "ANTHROPIC_BASE_URL"},
	"gemini":     {apiKey: "GEMINI_API_KEY"},
	"openrouter": {apiKey: "OPENROUTER_API_KEY"},
	"zai":        {apiKey: "ZAI_API_KEY"},
	"ollama":     {baseURL: "OLLAMA_HOST"},
}

// applyConventionalEnv 仅在对应字段为空时使用惯用环境变量
func (l *Loader) applyConventionalEnv(cfg *Config) {
	for vendor, names := range conventionalEnv {
		vc, _ := cfg.Vendor(vendor)
		changed := false
		if vc.APIKey == "" && names.apiKey != "" {
			if v, ok := l.lookupEnv(names.apiKey); ok && v != "" {
				vc.APIKey = v
				changed = true
			}
		}
		if vc.BaseURL == "" && names.baseURL != "" {
			if v, ok := l.lookupEnv(names.baseURL); ok && v != "" {
				vc.BaseURL = v
				changed = true
			}
		}
		if changed {
			cfg.SetVendor(vendor, vc)
		}
	}
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	// 特殊处理 Duration
	if field.Type() == durationType {
		d, err := ParseDuration(value)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	for name, vc := range c.Vendors {
		if vc.Timeout < 0 {
			errs = append(errs, fmt.Sprintf("vendors.%s.timeout must not be negative", name))
		}
		if vc.MaxInputTokens < 0 {
			errs = append(errs, fmt.Sprintf("vendors.%s.max_input_tokens must not be negative", name))
		}
		if vc.RequestsPerSecond < 0 {
			errs = append(errs, fmt.Sprintf("vendors.%s.requests_per_second must not be negative", name))
		}
	}
	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, "retry.max_attempts must not be negative")
	}
	if c.Retry.Multiplier != 0 && c.Retry.Multiplier < 1 {
		errs = append(errs, "retry.multiplier must be >= 1")
	}
	switch c.Tokenizer {
	case "", "estimator", "tiktoken":
	default:
		errs = append(errs, fmt.Sprintf("unknown tokenizer %q", c.Tokenizer))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
