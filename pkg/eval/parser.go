package eval

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseJSONResponse extracts a JSON object from a model reply. Markdown
// code fences are stripped; failing a direct parse, the first balanced
// {...} region is tried.
func parseJSONResponse(response string) (map[string]any, error) {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```") {
		lines := strings.Split(response, "\n")
		if len(lines) >= 2 {
			response = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(response), &out); err == nil {
		return out, nil
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(response[start:end+1]), &out); err != nil {
			return nil, fmt.Errorf("invalid JSON in response: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("no valid JSON found in response: %s", head(response, 100))
}

// intField reads a numeric field, tolerating the float64 JSON decoding.
func intField(m map[string]any, key string, def int) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

// boolField reads a boolean field with a default.
func boolField(m map[string]any, key string, def bool) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return def
}

// stringField reads a string field with a default.
func stringField(m map[string]any, key, def string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return def
}

// stringListField reads a list of strings, dropping non-string entries.
func stringListField(m map[string]any, key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// mapListField reads a list of objects, dropping non-object entries.
func mapListField(m map[string]any, key string) []map[string]any {
	raw, ok := m[key].([]any)
	if !ok {
		return []map[string]any{}
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

// clamp bounds v to [0, 100].
func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
