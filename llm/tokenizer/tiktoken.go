package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenTokenizer 为 OpenAI 系列模型提供 tiktoken 精确计数.
type TiktokenTokenizer struct {
	model     string
	encoding  string
	maxTokens int
	enc       *tiktoken.Tiktoken
	once      sync.Once
	initErr   error
}

type encodingInfo struct {
	encoding  string
	maxTokens int
}

// modelEncodings 将模型名前缀映射到 tiktoken 编码和上下文大小.
// 按前缀长度从长到短匹配.
var modelEncodings = []struct {
	prefix string
	encodingInfo
}{
	{"gpt-4o-mini", encodingInfo{"o200k_base", 128000}},
	{"gpt-4o", encodingInfo{"o200k_base", 128000}},
	{"gpt-4.1", encodingInfo{"o200k_base", 1047576}},
	{"gpt-4-turbo", encodingInfo{"cl100k_base", 128000}},
	{"gpt-4", encodingInfo{"cl100k_base", 8192}},
	{"gpt-3.5-turbo", encodingInfo{"cl100k_base", 16385}},
	{"chatgpt", encodingInfo{"o200k_base", 128000}},
	{"o1", encodingInfo{"o200k_base", 200000}},
	{"o3", encodingInfo{"o200k_base", 200000}},
	{"o4", encodingInfo{"o200k_base", 200000}},
}

func lookupEncoding(model string) (encodingInfo, bool) {
	model = strings.ToLower(model)
	for _, e := range modelEncodings {
		if strings.HasPrefix(model, e.prefix) {
			return e.encodingInfo, true
		}
	}
	return encodingInfo{}, false
}

// HasEncoding reports whether model maps to a known tiktoken encoding.
func HasEncoding(model string) bool {
	_, ok := lookupEncoding(model)
	return ok
}

// NewTiktokenTokenizer 为给定模型创建 tiktoken 分词器，未知模型默认 cl100k_base.
func NewTiktokenTokenizer(model string) *TiktokenTokenizer {
	info, ok := lookupEncoding(model)
	if !ok {
		info = encodingInfo{encoding: "cl100k_base", maxTokens: 8192}
	}
	return &TiktokenTokenizer{
		model:     model,
		encoding:  info.encoding,
		maxTokens: info.maxTokens,
	}
}

// init 延迟初始化 tiktoken 编码（首次使用时可能下载词表）.
func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *TiktokenTokenizer) MaxTokens() int {
	return t.maxTokens
}

func (t *TiktokenTokenizer) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}
