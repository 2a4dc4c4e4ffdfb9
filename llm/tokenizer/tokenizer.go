package tokenizer

import (
	"strings"
)

// Tokenizer 是统一的 token 计数接口.
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// MaxTokens 返回模型的最大上下文长度.
	MaxTokens() int

	// Name 返回分词器的名称.
	Name() string
}

// Kind names a tokenizer implementation in configuration.
const (
	KindEstimator = "estimator"
	KindTiktoken  = "tiktoken"
)

// New returns the tokenizer named by kind for model. Unknown or empty kinds
// and non-OpenAI models under "tiktoken" fall back to the estimator, since
// tiktoken encodings only describe OpenAI vocabularies.
func New(kind, model string) Tokenizer {
	if strings.EqualFold(kind, KindTiktoken) && HasEncoding(model) {
		return NewTiktokenTokenizer(model)
	}
	return NewEstimatorTokenizer(model, 0)
}

// Count runs t and falls back to Estimate when t is nil or fails.
func Count(t Tokenizer, text string) int {
	if t == nil {
		return Estimate(text)
	}
	n, err := t.CountTokens(text)
	if err != nil {
		return Estimate(text)
	}
	return n
}
