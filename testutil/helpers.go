// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试辅助函数和断言
//
// 使用方法:
//
//	ctx := testutil.TestContext(t)
//	srv := testutil.NewVendorServer(t).Reply(200, `{"ok":true}`)
//	testutil.AssertFailure(t, resp, types.KindTransport, types.ReasonRateLimit)
// =============================================================================
package testutil

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/BaSui01/llmgate/types"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestContextWithTimeout 返回带自定义超时的测试上下文
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 返回已取消的上下文
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// =============================================================================
// 🔍 断言辅助
// =============================================================================

// AssertSuccess 断言响应成功并返回输出
func AssertSuccess(t *testing.T, resp *types.Response) string {
	t.Helper()
	require.NotNil(t, resp)
	if !resp.Success() {
		info, _ := resp.ErrorInfo()
		t.Fatalf("expected success, got %s/%s: %s", info.Kind, info.Reason, info.Message)
	}
	return resp.Output()
}

// AssertFailure 断言响应失败且错误分类匹配；reason 为空时不比较
func AssertFailure(t *testing.T, resp *types.Response, kind types.Kind, reason types.Reason) types.ErrorInfo {
	t.Helper()
	require.NotNil(t, resp)
	require.False(t, resp.Success(), "expected failure, got output %q", resp.Output())
	info, ok := resp.ErrorInfo()
	require.True(t, ok, "failure response without error info")
	assert.Equal(t, kind, info.Kind)
	if reason != "" {
		assert.Equal(t, reason, info.Reason)
	}
	return info
}

// AssertJSONEqual 断言两个值序列化后的 JSON 相等
func AssertJSONEqual(t *testing.T, expected, actual any) {
	t.Helper()
	assert.JSONEq(t, MustJSON(expected), MustJSON(actual))
}

// AssertEventuallyTrue 断言条件最终为真
func AssertEventuallyTrue(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()
	assert.Eventually(t, condition, timeout, 10*time.Millisecond)
}

// =============================================================================
// 📦 数据工具
// =============================================================================

// MustJSON 序列化为 JSON 字符串，失败时 panic
func MustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// MustParseJSON 解析 JSON 字符串，失败时 panic
func MustParseJSON[T any](s string) T {
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		panic(err)
	}
	return v
}

// =============================================================================
// 🌐 厂商 HTTP 桩
// =============================================================================

// RecordedRequest 记录桩服务器收到的一次请求
type RecordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Query  string
	Body   []byte
}

// JSON 按 gjson 路径读取请求体
func (r RecordedRequest) JSON(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}

type reply struct {
	status  int
	body    string
	headers map[string]string
}

// VendorServer 是脚本化的厂商 HTTP 桩。回复按序消费，最后一条重复使用。
type VendorServer struct {
	*httptest.Server

	mu       sync.Mutex
	replies  []reply
	requests []RecordedRequest
}

// NewVendorServer 创建并在测试结束时关闭桩服务器
func NewVendorServer(t *testing.T) *VendorServer {
	t.Helper()
	s := &VendorServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Reply 追加一条回复
func (s *VendorServer) Reply(status int, body string) *VendorServer {
	return s.ReplyWithHeaders(status, body, nil)
}

// ReplyWithHeaders 追加一条带响应头的回复
func (s *VendorServer) ReplyWithHeaders(status int, body string, headers map[string]string) *VendorServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, reply{status: status, body: body, headers: headers})
	return s
}

// Requests 返回收到的请求副本
func (s *VendorServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// LastRequest 返回最后一次请求
func (s *VendorServer) LastRequest(t *testing.T) RecordedRequest {
	t.Helper()
	reqs := s.Requests()
	require.NotEmpty(t, reqs, "vendor server received no requests")
	return reqs[len(reqs)-1]
}

func (s *VendorServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Query:  r.URL.RawQuery,
		Body:   body,
	})
	rep := reply{status: http.StatusOK, body: "{}"}
	if n := len(s.replies); n > 0 {
		rep = s.replies[0]
		if n > 1 {
			s.replies = s.replies[1:]
		}
	}
	s.mu.Unlock()

	for k, v := range rep.headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rep.status)
	_, _ = io.WriteString(w, rep.body)
}
