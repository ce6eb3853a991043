package expressions

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// Resolve substitutes {{path}} tokens in value against vars.
//
// A string that is exactly one token resolves to the referenced value with
// its native type. A string mixing tokens and text resolves to a string, each
// token replaced by its string form ("" when absent). Maps and slices are
// resolved recursively into new containers; vars and value are never mutated.
// Missing paths resolve to nil rather than failing.
func Resolve(value any, vars map[string]any) any {
	switch v := value.(type) {
	case string:
		return resolveString(v, vars)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = Resolve(item, vars)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Resolve(item, vars)
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = resolveString(item, vars)
		}
		return out
	default:
		return value
	}
}

// ResolveMap resolves every entry of m. A nil map resolves to an empty one.
func ResolveMap(m map[string]any, vars map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return Resolve(m, vars).(map[string]any)
}

// HasTokens reports whether s contains a {{...}} reference.
func HasTokens(s string) bool {
	i := strings.Index(s, openDelim)
	return i >= 0 && strings.Contains(s[i+len(openDelim):], closeDelim)
}

// ExactToken returns the path of s when s is a single {{path}} token and nothing else.
func ExactToken(s string) (string, bool) {
	if !strings.HasPrefix(s, openDelim) || !strings.HasSuffix(s, closeDelim) {
		return "", false
	}
	inner := s[len(openDelim) : len(s)-len(closeDelim)]
	if strings.Contains(inner, openDelim) || strings.Contains(inner, closeDelim) {
		return "", false
	}
	path := strings.TrimSpace(inner)
	if path == "" {
		return "", false
	}
	return path, true
}

func resolveString(s string, vars map[string]any) any {
	if !HasTokens(s) {
		return s
	}
	if path, ok := ExactToken(s); ok {
		v, _ := Lookup(vars, path)
		return v
	}

	var b strings.Builder
	b.Grow(len(s))
	rest := s
	for {
		start := strings.Index(rest, openDelim)
		if start == -1 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start+len(openDelim):], closeDelim)
		if end == -1 {
			// Unclosed token: keep the remainder verbatim.
			b.WriteString(rest)
			break
		}
		end += start + len(openDelim)

		b.WriteString(rest[:start])
		path := strings.TrimSpace(rest[start+len(openDelim) : end])
		if v, ok := Lookup(vars, path); ok {
			b.WriteString(Stringify(v))
		}
		rest = rest[end+len(closeDelim):]
	}
	return b.String()
}

// Lookup walks vars along a dot-separated path. Numeric segments index into
// slices. A key containing dots is matched directly before the path is split.
func Lookup(vars map[string]any, path string) (any, bool) {
	if path == "" || vars == nil {
		return nil, false
	}
	if v, ok := vars[path]; ok {
		return v, true
	}

	var current any = vars
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return nil, false
		}
		next, ok := step(current, seg)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

func step(current any, seg string) (any, bool) {
	switch v := current.(type) {
	case map[string]any:
		val, ok := v[seg]
		return val, ok
	case map[string]string:
		val, ok := v[seg]
		return val, ok
	case []any:
		i, ok := index(seg, len(v))
		if !ok {
			return nil, false
		}
		return v[i], true
	case []map[string]any:
		i, ok := index(seg, len(v))
		if !ok {
			return nil, false
		}
		return v[i], true
	case []string:
		i, ok := index(seg, len(v))
		if !ok {
			return nil, false
		}
		return v[i], true
	default:
		return nil, false
	}
}

func index(seg string, n int) (int, bool) {
	i, err := strconv.Atoi(seg)
	if err != nil || i < 0 || i >= n {
		return 0, false
	}
	return i, true
}

// Stringify renders a resolved value for textual interpolation.
// nil renders as "", containers as compact JSON.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case json.Number:
		return val.String()
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case []byte:
		return string(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
