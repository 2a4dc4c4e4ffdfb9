package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/BaSui01/llmgate/llm"
)

// maxErrorBody 错误响应体的最大读取长度
const maxErrorBody = 64 << 10

// maxErrorMessage 非 JSON 错误体回退为消息时的最大字节数
const maxErrorMessage = 512

// errorMessagePaths 按顺序尝试的厂商错误消息位置
var errorMessagePaths = []string{
	"error.message",
	"error.msg",
	"error",
	"message",
	"detail",
}

// PostJSON 序列化 body 并 POST 到 endpoint，2xx 响应解码到 out。
// 非 2xx 返回 *llm.HTTPError，无法解码的 2xx 返回 *llm.DecodeError，
// 网络错误原样返回，由 llm.Classify 统一分类。
func PostJSON(ctx context.Context, client *http.Client, endpoint string, header http.Header, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return err
	}
	defer SafeCloseBody(resp.Body)

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &llm.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    ReadErrorMessage(data),
			RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &llm.DecodeError{Err: err}
	}
	return nil
}

// ReadErrorMessage 提取厂商错误消息，失败则回退到原始文本
func ReadErrorMessage(data []byte) string {
	if gjson.ValidBytes(data) {
		for _, p := range errorMessagePaths {
			if r := gjson.GetBytes(data, p); r.Type == gjson.String && r.Str != "" {
				return r.Str
			}
		}
	}
	return truncateMessage(strings.TrimSpace(string(data)), maxErrorMessage)
}

// truncateMessage 在不超过 n 字节的 rune 边界处截断
func truncateMessage(msg string, n int) string {
	if len(msg) <= n {
		return msg
	}
	for n > 0 && !utf8.RuneStart(msg[n]) {
		n--
	}
	return msg[:n]
}

// ParseRetryAfter 解析 Retry-After 头：秒数或 HTTP 日期
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// SafeCloseBody 安全关闭 HTTP 响应体并忽略错误
func SafeCloseBody(body io.ReadCloser) {
	if body != nil {
		_ = body.Close()
	}
}

// Endpoint 拼接基础地址与路径
func Endpoint(baseURL, p string) string {
	return strings.TrimRight(baseURL, "/") + p
}

// ChooseModel 请求模型优先，其次默认模型
func ChooseModel(req *llm.ChatRequest, defaultModel string) string {
	if req != nil && req.Model != "" {
		return req.Model
	}
	return defaultModel
}

// =============================================================================
// 图片辅助
// =============================================================================

// ParseDataURL 解析 data:<mime>;base64,<payload> 形式的内联图片
func ParseDataURL(u string) (mediaType, data string, ok bool) {
	rest, found := strings.CutPrefix(u, "data:")
	if !found {
		return "", "", false
	}
	meta, payload, found := strings.Cut(rest, ",")
	if !found || payload == "" {
		return "", "", false
	}
	mediaType, params, _ := strings.Cut(meta, ";")
	if params != "base64" && !strings.HasSuffix(params, ";base64") {
		return "", "", false
	}
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return mediaType, payload, true
}

// GuessMediaType 按扩展名推断图片 MIME 类型，未知时返回 image/jpeg
func GuessMediaType(u string) string {
	p := u
	if parsed, err := url.Parse(u); err == nil && parsed.Path != "" {
		p = parsed.Path
	}
	switch ext := strings.ToLower(path.Ext(p)); ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case "":
		return "image/jpeg"
	default:
		if t := mime.TypeByExtension(ext); strings.HasPrefix(t, "image/") {
			t, _, _ = strings.Cut(t, ";")
			return t
		}
		return "image/jpeg"
	}
}
