// =============================================================================
// 📦 llmgate 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultVendorTimeout 未配置 timeout 时的单次请求超时
const DefaultVendorTimeout = 30 * time.Second

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Vendors:   make(map[string]VendorConfig),
		Retry:     DefaultRetryConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Metrics:   DefaultMetricsConfig(),
		Tokenizer: "estimator",
	}
}

// DefaultRetryConfig 返回默认重试配置
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: Duration(1 * time.Second),
		MaxDelay:     Duration(30 * time.Second),
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "llmgate",
		SampleRate:   0.1,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Namespace: "llmgate",
	}
}

// EffectiveTimeout 返回厂商配置的超时，未设置时使用默认值
func (v VendorConfig) EffectiveTimeout() time.Duration {
	if v.Timeout <= 0 {
		return DefaultVendorTimeout
	}
	return v.Timeout.Std()
}
