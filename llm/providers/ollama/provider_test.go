package ollama

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/llmgate/llm"
	"github.com/BaSui01/llmgate/llm/providers"
	"github.com/BaSui01/llmgate/testutil"
	"github.com/BaSui01/llmgate/types"
)

func TestNormalizeHost(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:11434", NormalizeHost("127.0.0.1:11434"))
	assert.Equal(t, "https://ollama.internal", NormalizeHost("https://ollama.internal/"))
	assert.Equal(t, "", NormalizeHost("  "))
}

func TestProvider_NoAuth(t *testing.T) {
	srv := testutil.NewVendorServer(t).Reply(http.StatusOK, `{"model":"llama3.2-vision","choices":[{"finish_reason":"stop","message":{"content":"local"}}]}`)
	p := New(providers.Config{BaseURL: srv.URL, HTTPClient: srv.Client()})

	parts, err := llm.FormatPrompt(p.Descriptor(), types.PlainText("hi"))
	require.NoError(t, err)
	resp, err := p.Completion(context.Background(), &llm.ChatRequest{Parts: parts})
	require.NoError(t, err)
	assert.Equal(t, "local", resp.Text)
	assert.Zero(t, resp.Usage.PromptTokens)

	req := srv.LastRequest(t)
	assert.Equal(t, "/v1/chat/completions", req.Path)
	assert.Empty(t, req.Header.Get("Authorization"))
	assert.Equal(t, "llama3.2-vision", req.JSON("model").String())
}

func TestProvider_OptionalKey(t *testing.T) {
	srv := testutil.NewVendorServer(t).Reply(http.StatusOK, `{"choices":[{"message":{"content":"x"}}]}`)
	p := New(providers.Config{APIKey: "proxy-token", BaseURL: srv.URL, HTTPClient: srv.Client()})

	_, err := p.Completion(context.Background(), &llm.ChatRequest{Parts: []types.ContentPart{{Kind: types.PartText, Text: "x", Payload: map[string]any{"type": "text", "text": "x"}}}})
	require.NoError(t, err)
	assert.Equal(t, "Bearer proxy-token", srv.LastRequest(t).Header.Get("Authorization"))
	assert.False(t, Descriptor().Auth.RequiresKey())
}
