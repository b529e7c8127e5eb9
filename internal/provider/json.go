package provider

import (
	"encoding/json"
	"strings"
)

// ParseJSONObject extracts a JSON object from a model response, tolerating
// markdown code fences and surrounding prose. Unparsable input returns an
// empty map; a non-object JSON value is wrapped under a "data" key.
func ParseJSONObject(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}
	}

	if strings.HasPrefix(raw, "```") {
		raw = strings.Trim(raw, "`")
		if _, rest, found := strings.Cut(raw, "\n"); found {
			raw = rest
		}
		raw = strings.TrimSpace(raw)
	}

	if obj, ok := tryParse(raw); ok {
		return obj
	}

	// Salvage: slice from the first "{" to the last "}".
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start != -1 && end > start {
		if obj, ok := tryParse(raw[start : end+1]); ok {
			return obj
		}
	}
	return map[string]any{}
}

func tryParse(s string) (map[string]any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	if obj, ok := v.(map[string]any); ok {
		return obj, true
	}
	return map[string]any{"data": v}, true
}
