package mcpserver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// argJSON returns a tool argument that holds JSON, either as text or as an
// already decoded value.
func argJSON(args map[string]any, key string) (any, error) {
	switch v := args[key].(type) {
	case nil:
		return nil, fmt.Errorf("%s is required", key)
	case string:
		var out any
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("parse %s: %w", key, err)
		}
		return out, nil
	default:
		return v, nil
	}
}

// argStrings accepts a JSON array of strings or a comma-separated string.
func argStrings(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []any:
		return lo.FilterMap(v, func(item any, _ int) (string, bool) {
			s, ok := item.(string)
			return s, ok && s != ""
		})
	case []string:
		return v
	case string:
		parts := lo.Map(strings.Split(v, ","), func(p string, _ int) string { return strings.TrimSpace(p) })
		return lo.Compact(parts)
	default:
		return nil
	}
}

// argInt reads a numeric argument; JSON numbers arrive as float64.
func argInt(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}
