package llm

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/samber/lo"

	"github.com/BaSui01/llmgate/types"
)

// FormatPrompt normalizes prompt into the vendor content sequence described
// by desc. It runs once per call; the returned order is final.
func FormatPrompt(desc Descriptor, prompt types.Prompt) ([]types.ContentPart, error) {
	switch p := prompt.(type) {
	case types.PlainText:
		if p == "" {
			return nil, types.NewPromptError("prompt text is empty")
		}
		return []types.ContentPart{textPart(desc, string(p))}, nil

	case types.Structured:
		return formatStructured(desc, p)

	case types.RawParts:
		return formatRaw(desc, p)

	case nil:
		return nil, types.NewPromptError("no prompt supplied")

	default:
		return nil, types.NewPromptError("unsupported prompt shape %T", prompt)
	}
}

func textPart(desc Descriptor, text string) types.ContentPart {
	return types.ContentPart{Kind: types.PartText, Text: text, Payload: desc.FormatText(text)}
}

func formatStructured(desc Descriptor, p types.Structured) ([]types.ContentPart, error) {
	if p.Text == "" && len(p.Images) == 0 {
		return nil, types.NewPromptError("structured prompt has neither text nor images")
	}

	images := make([]types.ContentPart, 0, len(p.Images))
	for i, ref := range p.Images {
		payload, err := formatImage(desc, ref)
		if err != nil {
			return nil, types.NewPromptError("image %d: %v", i, err)
		}
		images = append(images, types.ContentPart{Kind: types.PartImage, Payload: payload})
	}

	if p.Text == "" {
		return images, nil
	}
	text := textPart(desc, p.Text)
	if desc.ImagesBeforeText {
		return append(images, text), nil
	}
	return append([]types.ContentPart{text}, images...), nil
}

func formatImage(desc Descriptor, ref types.ImageRef) (map[string]any, error) {
	switch img := ref.(type) {
	case types.ImageURL:
		if img == "" {
			return nil, errors.New("image url is empty")
		}
		return desc.FormatImageURL(string(img))

	case types.ImageSpec:
		if img.URL == "" {
			return nil, errors.New("image url is empty")
		}
		if !desc.SupportsDetail {
			img.Detail = ""
		} else if !img.Detail.Valid() {
			return nil, fmt.Errorf("unknown image detail %q", img.Detail)
		}
		return desc.FormatImageHash(img)

	default:
		return nil, fmt.Errorf("unsupported image reference %T", ref)
	}
}

func formatRaw(desc Descriptor, raw types.RawParts) ([]types.ContentPart, error) {
	if len(raw) == 0 {
		return nil, types.NewPromptError("raw prompt has no parts")
	}
	parts := make([]types.ContentPart, 0, len(raw))
	for i, part := range raw {
		if len(part) == 0 {
			return nil, types.NewPromptError("raw part %d is empty", i)
		}
		if err := desc.CheckRawPart(part); err != nil {
			return nil, types.NewPromptError("raw part %d does not match %s content shape: %v", i, desc.Vendor, err)
		}
		payload := maps.Clone(part)
		if text, ok := payload["text"].(string); ok {
			parts = append(parts, types.ContentPart{Kind: types.PartText, Text: text, Payload: payload})
			continue
		}
		parts = append(parts, types.ContentPart{Kind: types.PartImage, Payload: payload})
	}
	return parts, nil
}

// ExtractText concatenates the text parts in sequence order. Image parts
// contribute nothing.
func ExtractText(parts []types.ContentPart) string {
	var b strings.Builder
	for _, p := range parts {
		if p.Kind == types.PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// Payloads returns the wire records of parts, in order.
func Payloads(parts []types.ContentPart) []map[string]any {
	return lo.Map(parts, func(p types.ContentPart, _ int) map[string]any { return p.Payload })
}
