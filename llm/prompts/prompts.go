// Package prompts renders the closed set of prompt templates used by
// Client.Generate.
package prompts

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/samber/lo"
)

// Sentinel errors for template operations.
var (
	// ErrUnknownType is returned for a template type outside the closed set.
	ErrUnknownType = errors.New("unknown template type")

	// ErrVariable is returned when a required variable is missing.
	ErrVariable = errors.New("required variable missing")

	// ErrExecute is returned when template parsing or execution fails.
	ErrExecute = errors.New("template execution error")
)

// Type names a prompt template.
type Type string

const (
	ExtractLinks    Type = "extract_links"
	AnalyzeContent  Type = "analyze_content"
	SummarizeText   Type = "summarize_text"
	ClassifyContent Type = "classify_content"
	Custom          Type = "custom"
)

type entry struct {
	required []string
	text     string
}

var registry = map[Type]entry{
	ExtractLinks: {
		required: []string{"content"},
		text: `Extract every hyperlink from the content below.
{{- with .base_url}} Resolve relative links against {{.}}.{{end}}
Return one absolute URL per line and nothing else.

Content:
{{.content}}`,
	},
	AnalyzeContent: {
		required: []string{"content"},
		text: `Analyze the following content{{with .focus}} with a focus on {{.}}{{end}}.
Describe its main topics, tone and intended audience.

Content:
{{.content}}`,
	},
	SummarizeText: {
		required: []string{"text"},
		text: `Summarize the text below{{with .max_words}} in at most {{.}} words{{end}}.

Text:
{{.text}}`,
	},
	ClassifyContent: {
		required: []string{"content", "categories"},
		text: `Classify the content into exactly one of these categories: {{list .categories}}.
Answer with the category name only.

Content:
{{.content}}`,
	},
	Custom: {
		required: []string{"template"},
	},
}

var funcs = template.FuncMap{
	"list": list,
}

// list renders a slice as a comma separated list.
func list(v any) string {
	switch x := v.(type) {
	case []string:
		return strings.Join(x, ", ")
	case []any:
		return strings.Join(lo.Map(x, func(item any, _ int) string { return fmt.Sprint(item) }), ", ")
	default:
		return fmt.Sprint(v)
	}
}

// Types lists the supported template types in a stable order.
func Types() []Type {
	out := lo.Keys(registry)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Supported reports whether name is a known template type.
func Supported(name string) bool {
	_, ok := registry[Type(name)]
	return ok
}

// Required returns the variables typ needs.
func Required(typ Type) ([]string, error) {
	s, ok := registry[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	return append([]string(nil), s.required...), nil
}

// ValidateVariables checks that all required variables are provided and non-empty.
func ValidateVariables(required []string, provided map[string]any) error {
	for _, name := range required {
		v, ok := provided[name]
		if !ok || v == nil {
			return fmt.Errorf("%w: %s", ErrVariable, name)
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: %s", ErrVariable, name)
		}
	}
	return nil
}

// Render validates data against typ and executes its template. For Custom
// the template text itself comes from data["template"].
func Render(typ Type, data map[string]any) (string, error) {
	s, ok := registry[typ]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	if err := ValidateVariables(s.required, data); err != nil {
		return "", err
	}

	text := s.text
	if typ == Custom {
		raw, ok := data["template"].(string)
		if !ok {
			return "", fmt.Errorf("%w: template must be a string", ErrVariable)
		}
		text = raw
	}

	tmpl, err := template.New(string(typ)).Funcs(funcs).Parse(text)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExecute, err)
	}
	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %w", ErrExecute, err)
	}
	return buf.String(), nil
}
