// 配置加载器与默认配置测试。
package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().WithEnv(map[string]string{}).Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Empty(t, cfg.Vendors)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, "estimator", cfg.Tokenizer)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	path := writeFile(t, "llmgate.yaml", `
vendors:
  OpenAI:
    api_key: sk-test
    timeout: 45
    default_model: gpt-4o-mini
    log_level: warn
  anthropic:
    api_key: ak-test
    timeout: 1m30s
    max_input_tokens: 100000
    options:
      max_tokens: 2048
retry:
  max_attempts: 5
  initial_delay: 500ms
log:
  level: debug
`)

	cfg, err := NewLoader().WithConfigPath(path).WithEnv(map[string]string{}).Load()
	require.NoError(t, err)

	openai, ok := cfg.Vendor("openai")
	require.True(t, ok, "vendor keys are lower-cased")
	assert.Equal(t, "sk-test", openai.APIKey)
	assert.Equal(t, 45*time.Second, openai.Timeout.Std())
	assert.Equal(t, "gpt-4o-mini", openai.DefaultModel)
	assert.Equal(t, "warn", openai.LogLevel)

	anthropic, ok := cfg.Vendor("ANTHROPIC")
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, anthropic.Timeout.Std())
	assert.Equal(t, 100000, anthropic.MaxInputTokens)
	assert.Equal(t, 2048, anthropic.Options["max_tokens"])

	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.InitialDelay.Std())
	// 未覆盖的字段保留默认值
	assert.Equal(t, 30*time.Second, cfg.Retry.MaxDelay.Std())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoader_LoadFromTOML(t *testing.T) {
	path := writeFile(t, "llmgate.toml", `
tokenizer = "tiktoken"

[vendors.gemini]
api_key = "g-key"
timeout = 20
default_model = "gemini-1.5-flash"

[vendors.ollama]
base_url = "http://gpu-box:11434"
timeout = "2m"

[retry]
max_attempts = 2
max_delay = 10
`)

	cfg, err := NewLoader().WithConfigPath(path).WithEnv(map[string]string{}).Load()
	require.NoError(t, err)

	gemini, ok := cfg.Vendor("gemini")
	require.True(t, ok)
	assert.Equal(t, "g-key", gemini.APIKey)
	assert.Equal(t, 20*time.Second, gemini.Timeout.Std())

	ollama, ok := cfg.Vendor("ollama")
	require.True(t, ok)
	assert.Equal(t, "http://gpu-box:11434", ollama.BaseURL)
	assert.Equal(t, 2*time.Minute, ollama.Timeout.Std())

	assert.Equal(t, 2, cfg.Retry.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Retry.MaxDelay.Std())
	assert.Equal(t, "tiktoken", cfg.Tokenizer)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml")).
		WithEnv(map[string]string{}).
		Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultRetryConfig(), cfg.Retry)
}

func TestLoader_InvalidYAML(t *testing.T) {
	path := writeFile(t, "bad.yaml", "vendors: [oops")
	_, err := NewLoader().WithConfigPath(path).WithEnv(map[string]string{}).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config from file")
}

func TestLoader_EnvOverrides(t *testing.T) {
	path := writeFile(t, "llmgate.yaml", `
vendors:
  openai:
    api_key: from-file
    timeout: 10
`)

	env := map[string]string{
		"LLMGATE_VENDORS_OPENAI_API_KEY":          "from-env",
		"LLMGATE_VENDORS_ZAI_BASE_URL":            "https://zai.internal/api",
		"LLMGATE_VENDORS_ZAI_TIMEOUT":             "15",
		"LLMGATE_VENDORS_ZAI_REQUESTS_PER_SECOND": "2.5",
		"LLMGATE_RETRY_MAX_ATTEMPTS":              "7",
		"LLMGATE_RETRY_MAX_DELAY":                 "3s",
		"LLMGATE_LOG_OUTPUT_PATHS":                "stdout, /tmp/llmgate.log",
	}

	cfg, err := NewLoader().WithConfigPath(path).WithEnv(env).Load()
	require.NoError(t, err)

	openai, _ := cfg.Vendor("openai")
	assert.Equal(t, "from-env", openai.APIKey)
	assert.Equal(t, 10*time.Second, openai.Timeout.Std(), "file value kept when env is silent")

	zai, ok := cfg.Vendor("zai")
	require.True(t, ok)
	assert.Equal(t, "https://zai.internal/api", zai.BaseURL)
	assert.Equal(t, 15*time.Second, zai.Timeout.Std())
	assert.Equal(t, 2.5, zai.RequestsPerSecond)

	assert.Equal(t, 7, cfg.Retry.MaxAttempts)
	assert.Equal(t, 3*time.Second, cfg.Retry.MaxDelay.Std())
	assert.Equal(t, []string{"stdout", "/tmp/llmgate.log"}, cfg.Log.OutputPaths)
}

func TestLoader_ConventionalEnvFillsGapsOnly(t *testing.T) {
	env := map[string]string{
		"LLMGATE_VENDORS_OPENAI_API_KEY": "explicit",
		"OPENAI_API_KEY":                 "conventional",
		"ANTHROPIC_API_KEY":              "ak",
		"OLLAMA_HOST":                    "http://127.0.0.1:11434",
	}

	cfg, err := NewLoader().WithEnv(env).Load()
	require.NoError(t, err)

	openai, _ := cfg.Vendor("openai")
	assert.Equal(t, "explicit", openai.APIKey)
	anthropic, _ := cfg.Vendor("anthropic")
	assert.Equal(t, "ak", anthropic.APIKey)
	ollama, _ := cfg.Vendor("ollama")
	assert.Equal(t, "http://127.0.0.1:11434", ollama.BaseURL)
	_, ok := cfg.Vendor("gemini")
	assert.False(t, ok)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	_, err := NewLoader().WithEnv(map[string]string{"LLMGATE_RETRY_MAX_ATTEMPTS": "many"}).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLMGATE_RETRY_MAX_ATTEMPTS")
}

func TestLoader_Validator(t *testing.T) {
	env := map[string]string{"LLMGATE_TOKENIZER": "sentencepiece"}
	_, err := NewLoader().WithEnv(env).WithValidator((*Config).Validate).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tokenizer")
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		err  bool
	}{
		{"", 0, false},
		{"30", 30 * time.Second, false},
		{"2.5", 2500 * time.Millisecond, false},
		{"1m", time.Minute, false},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Std())
		})
	}
}

func TestGlobal_ConcurrentFirstUse(t *testing.T) {
	path := writeFile(t, "global.yaml", "vendors:\n  openai:\n    api_key: g\n")
	t.Setenv(ConfigPathEnv, path)
	resetGlobal()
	t.Cleanup(resetGlobal)

	const n = 16
	results := make([]*Config, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cfg, err := Global()
			assert.NoError(t, err)
			results[i] = cfg
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, results[0], results[i])
	}
	openai, _ := results[0].Vendor("openai")
	assert.Equal(t, "g", openai.APIKey)
}
