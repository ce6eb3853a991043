package modules

import (
	"strings"

	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

// Path is a parsed category.module.function reference.
type Path struct {
	Category string
	Module   string
	Function string
}

func (p Path) String() string {
	return p.Category + "." + p.Module + "." + p.Function
}

// splitPath breaks raw into its candidate category plus module and function.
// A four-segment path is read as a two-word category ("social.media.x.post");
// the caller decides whether that category exists.
func splitPath(raw string) (category string, twoWord string, module, function string, err error) {
	segs := strings.Split(strings.TrimSpace(raw), ".")
	for _, s := range segs {
		if strings.TrimSpace(s) == "" {
			return "", "", "", "", invalidPath(raw)
		}
	}
	switch len(segs) {
	case 3:
		return segs[0], "", strings.TrimSpace(segs[1]), strings.TrimSpace(segs[2]), nil
	case 4:
		return "", segs[0] + " " + segs[1], strings.TrimSpace(segs[2]), strings.TrimSpace(segs[3]), nil
	default:
		return "", "", "", "", invalidPath(raw)
	}
}

// NormalizeCategory lowercases a category and folds whitespace and
// underscores into single hyphens, so "Social Media" becomes "social-media".
func NormalizeCategory(category string) string {
	fields := strings.FieldsFunc(strings.ToLower(category), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '_' || r == '-'
	})
	return strings.Join(fields, "-")
}

func invalidPath(raw string) *schema.EngineError {
	return schema.NewErrorf(schema.ErrCodeInvalidModulePath,
		"invalid module path %q: expected category.module.function", raw).
		WithDetails(map[string]any{"module": raw})
}
