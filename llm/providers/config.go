package providers

import (
	"net/http"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/BaSui01/llmgate/internal/tlsutil"
)

// DefaultTimeout 未配置时的单次请求超时
const DefaultTimeout = 30 * time.Second

// Config 所有 Provider 共享的基础配置字段。
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration

	// Options 厂商特有的透传选项（如 OpenRouter 的 http_referer）
	Options map[string]any

	// HTTPClient 为空时按 Timeout 构造加固的客户端
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client 返回 HTTP 客户端
func (c Config) Client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return tlsutil.SecureHTTPClient(timeout)
}

// ResolveBaseURL 返回配置的基础地址，未配置时使用 def
func (c Config) ResolveBaseURL(def string) string {
	if s := strings.TrimSpace(c.BaseURL); s != "" {
		return strings.TrimRight(s, "/")
	}
	return strings.TrimRight(def, "/")
}

// ResolveLogger 返回日志器，未配置时为 Nop
func (c Config) ResolveLogger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

// DecodeOptions 将透传选项解码到 out（mapstructure 标签），未知键忽略
func (c Config) DecodeOptions(out any) error {
	if len(c.Options) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(c.Options)
}
