package types

import (
	"encoding/json"
	"fmt"
)

// Prompt is the caller supplied input of a direct generate call.
// It is one of PlainText, Structured or RawParts.
type Prompt interface {
	isPrompt()
}

// PlainText is a bare text prompt.
type PlainText string

// Structured couples an instruction text with one or more images.
type Structured struct {
	Text   string     `json:"text"`
	Images []ImageRef `json:"images,omitempty"`
}

// RawParts are vendor shaped content records sent as-is after a shape check.
type RawParts []map[string]any

func (PlainText) isPrompt()  {}
func (Structured) isPrompt() {}
func (RawParts) isPrompt()   {}

// Detail is the optional resolution hint of an image.
type Detail string

const (
	DetailAuto Detail = "auto"
	DetailLow  Detail = "low"
	DetailHigh Detail = "high"
)

// Valid reports whether d is empty or one of the known levels.
func (d Detail) Valid() bool {
	switch d {
	case "", DetailAuto, DetailLow, DetailHigh:
		return true
	default:
		return false
	}
}

// ImageRef is either an ImageURL or an ImageSpec.
type ImageRef interface {
	isImageRef()
}

// ImageURL is a bare image location: http(s) or a data URL.
type ImageURL string

// ImageSpec is an image record with an optional detail level.
type ImageSpec struct {
	URL    string `json:"url" mapstructure:"url"`
	Detail Detail `json:"detail,omitempty" mapstructure:"detail"`
}

func (ImageURL) isImageRef()  {}
func (ImageSpec) isImageRef() {}

// Images converts loosely typed image input into refs. It accepts a single
// string, a single record, or a slice of either, matching what callers
// put into template data under "images".
func Images(v any) ([]ImageRef, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []ImageRef{ImageURL(x)}, nil
	case ImageURL:
		return []ImageRef{x}, nil
	case ImageSpec:
		return []ImageRef{x}, nil
	case map[string]any:
		spec, err := imageSpecFromMap(x)
		if err != nil {
			return nil, err
		}
		return []ImageRef{spec}, nil
	case []ImageRef:
		return x, nil
	case []string:
		refs := make([]ImageRef, 0, len(x))
		for _, s := range x {
			refs = append(refs, ImageURL(s))
		}
		return refs, nil
	case []any:
		refs := make([]ImageRef, 0, len(x))
		for i, item := range x {
			one, err := Images(item)
			if err != nil {
				return nil, fmt.Errorf("image %d: %w", i, err)
			}
			refs = append(refs, one...)
		}
		return refs, nil
	default:
		return nil, NewPromptError("unsupported image value of type %T", v)
	}
}

func imageSpecFromMap(m map[string]any) (ImageSpec, error) {
	url, _ := m["url"].(string)
	if url == "" {
		return ImageSpec{}, NewPromptError("image record is missing \"url\"")
	}
	spec := ImageSpec{URL: url}
	if d, ok := m["detail"]; ok {
		s, ok := d.(string)
		if !ok {
			return ImageSpec{}, NewPromptError("image detail must be a string, got %T", d)
		}
		spec.Detail = Detail(s)
	}
	return spec, nil
}

// PartKind tags a ContentPart.
type PartKind int

const (
	PartText PartKind = iota
	PartImage
)

func (k PartKind) String() string {
	if k == PartImage {
		return "image"
	}
	return "text"
}

// ContentPart is one element of a vendor ready content sequence.
// Payload holds the exact record that goes on the wire.
type ContentPart struct {
	Kind    PartKind
	Text    string
	Payload map[string]any
}

// MarshalJSON emits the wire payload.
func (p ContentPart) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Payload)
}
