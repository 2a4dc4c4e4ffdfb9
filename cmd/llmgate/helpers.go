package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/BaSui01/llmgate/types"
)

var getenv = os.Getenv

// parseData turns repeated key=value flags into template data. A value
// starting with "@" is read from the named file.
func parseData(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	data := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --data %q: expected key=value", pair)
		}
		if path, isFile := strings.CutPrefix(value, "@"); isFile {
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read --data %s: %w", key, err)
			}
			value = string(raw)
		}
		data[key] = value
	}
	return data, nil
}

// readRawParts loads a JSON array of vendor-shaped content parts.
func readRawParts(path string) (any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read raw parts: %w", err)
	}
	var v []any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode raw parts %s: %w", path, err)
	}
	return v, nil
}

func formatTokens(resp *types.Response) string {
	if !resp.Success() {
		return "-"
	}
	return fmt.Sprintf("%d/%d", resp.InputTokens(), resp.OutputTokens())
}

func formatStatus(resp *types.Response) string {
	if resp.Success() {
		return "ok"
	}
	if info, ok := resp.ErrorInfo(); ok {
		if info.Reason != "" {
			return string(info.Reason)
		}
		return string(info.Kind)
	}
	return "error"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
