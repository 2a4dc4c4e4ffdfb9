package quick

import (
	"github.com/BaSui01/llmgate/types"
)

// ParsePrompt converts loosely typed input, such as decoded JSON, into a
// Prompt: a string is plain text, a record with "text" and/or "images" is a
// structured prompt, and a list of records is raw vendor parts.
func ParsePrompt(v any) (types.Prompt, error) {
	switch x := v.(type) {
	case types.Prompt:
		return x, nil
	case string:
		return types.PlainText(x), nil
	case map[string]any:
		text, ok := x["text"].(string)
		if _, present := x["text"]; present && !ok {
			return nil, types.NewPromptError("prompt text must be a string, got %T", x["text"])
		}
		images, err := types.Images(x["images"])
		if err != nil {
			return nil, err
		}
		return types.Structured{Text: text, Images: images}, nil
	case []map[string]any:
		return types.RawParts(x), nil
	case []any:
		parts := make(types.RawParts, 0, len(x))
		for i, item := range x {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, types.NewPromptError("raw part %d must be an object, got %T", i, item)
			}
			parts = append(parts, m)
		}
		return parts, nil
	default:
		return nil, types.NewPromptError("unsupported prompt value of type %T", v)
	}
}
