package modules

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/seanmmay/b0t-sub000/internal/expressions"
)

// Option-map helpers for object-style modules.

func stringParam(m map[string]any, key, defaultVal string) string {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	s, ok := v.(string)
	if !ok {
		return defaultVal
	}
	return s
}

func boolParam(m map[string]any, key string, defaultVal bool) bool {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	b, ok := v.(bool)
	if !ok {
		return defaultVal
	}
	return b
}

func intParam(m map[string]any, key string, defaultVal int) int {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	f, err := toFloat(v)
	if err != nil {
		return defaultVal
	}
	return int(f)
}

// Argument coercion for positional and scalar modules.

// toFloat accepts any Go number, json.Number, or a numeric string.
func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", n)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("missing number")
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

// toString accepts strings and renders other scalars; nil is an error.
func toString(v any) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", fmt.Errorf("missing string")
	case string:
		return s, nil
	case map[string]any, []any:
		return "", fmt.Errorf("expected string, got %T", v)
	default:
		return expressions.Stringify(s), nil
	}
}

// toSlice accepts []any and []string.
func toSlice(v any) ([]any, error) {
	switch s := v.(type) {
	case []any:
		return s, nil
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("missing array")
	default:
		return nil, fmt.Errorf("expected array, got %T", v)
	}
}
