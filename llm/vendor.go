package llm

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/BaSui01/llmgate/types"
)

// Vendor identifies a supported LLM provider.
type Vendor string

const (
	VendorOpenAI     Vendor = "openai"
	VendorAnthropic  Vendor = "anthropic"
	VendorOllama     Vendor = "ollama"
	VendorOpenRouter Vendor = "openrouter"
	VendorGemini     Vendor = "gemini"
	VendorZAI        Vendor = "zai"
)

// Vendors lists every supported vendor in a stable order.
func Vendors() []Vendor {
	return []Vendor{VendorOpenAI, VendorAnthropic, VendorOllama, VendorOpenRouter, VendorGemini, VendorZAI}
}

func (v Vendor) String() string { return string(v) }

var vendorAliases = map[string]Vendor{
	"claude": VendorAnthropic,
	"google": VendorGemini,
	"glm":    VendorZAI,
	"zhipu":  VendorZAI,
}

// ParseVendor resolves a case-insensitive vendor symbol. Unknown names
// yield an unsupported-vendor error.
func ParseVendor(name string) (Vendor, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if v, ok := vendorAliases[key]; ok {
		return v, nil
	}
	if lo.Contains(Vendors(), Vendor(key)) {
		return Vendor(key), nil
	}
	return "", types.NewUnsupportedVendorError(name)
}

// AuthScheme is how a vendor expects the API key.
type AuthScheme string

const (
	AuthBearer         AuthScheme = "bearer"
	AuthXAPIKey        AuthScheme = "x-api-key"
	AuthGoogAPIKey     AuthScheme = "x-goog-api-key"
	AuthNone           AuthScheme = "none"
	AuthOptionalBearer AuthScheme = "optional-bearer"
)

// RequiresKey reports whether a client cannot be built without an API key.
func (a AuthScheme) RequiresKey() bool {
	return a != AuthNone && a != AuthOptionalBearer
}

// Descriptor is the immutable capability record of a vendor. The formatter
// is a single function parameterized by it.
type Descriptor struct {
	Vendor       Vendor
	DisplayName  string
	BaseURL      string
	Auth         AuthScheme
	DefaultModel string

	// SupportsDetail keeps ImageSpec.Detail; otherwise it is cleared before
	// FormatImageHash runs.
	SupportsDetail bool
	// ImagesBeforeText places every image part ahead of the text part.
	ImagesBeforeText bool

	FormatText      func(text string) map[string]any
	FormatImageURL  func(url string) (map[string]any, error)
	FormatImageHash func(img types.ImageSpec) (map[string]any, error)
	// CheckRawPart validates one caller supplied raw part.
	CheckRawPart func(part map[string]any) error
}

// Validate reports a descriptor missing a customization point.
func (d Descriptor) Validate() error {
	switch {
	case d.Vendor == "":
		return fmt.Errorf("descriptor: vendor is empty")
	case d.FormatText == nil, d.FormatImageURL == nil, d.FormatImageHash == nil, d.CheckRawPart == nil:
		return fmt.Errorf("descriptor %s: missing formatting function", d.Vendor)
	}
	return nil
}

// CheckTypedPart accepts raw parts whose "type" is one of allowed.
func CheckTypedPart(allowed ...string) func(map[string]any) error {
	return func(part map[string]any) error {
		typ, _ := part["type"].(string)
		if typ == "" {
			return fmt.Errorf("part has no \"type\" field")
		}
		if !lo.Contains(allowed, typ) {
			return fmt.Errorf("part type %q is not one of %v", typ, allowed)
		}
		return nil
	}
}

// CheckKeyedPart accepts raw parts carrying exactly one of keys.
func CheckKeyedPart(keys ...string) func(map[string]any) error {
	return func(part map[string]any) error {
		found := lo.Filter(keys, func(k string, _ int) bool {
			_, ok := part[k]
			return ok
		})
		if len(found) != 1 {
			return fmt.Errorf("part must carry exactly one of %v", keys)
		}
		return nil
	}
}
