package modules

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// StringModules returns the utilities.string-utils operations.
func StringModules() []Descriptor {
	return []Descriptor{
		stringFunc("capitalize", "Uppercase the first character", capitalize),
		stringFunc("uppercase", "Uppercase the whole string", strings.ToUpper),
		stringFunc("lowercase", "Lowercase the whole string", strings.ToLower),
		stringFunc("trim", "Strip leading and trailing whitespace", strings.TrimSpace),
		stringFunc("slugify", "Lowercase, hyphen-separated ASCII slug", slugify),

		Positional("utilities.string-utils.split", "Split a string on a separator",
			[]string{"str", "separator"},
			func(_ context.Context, args []any) (any, error) {
				s, err := toString(args[0])
				if err != nil {
					return nil, err
				}
				sep, err := toString(args[1])
				if err != nil {
					return nil, fmt.Errorf("separator: %w", err)
				}
				parts := strings.Split(s, sep)
				out := make([]any, len(parts))
				for i, p := range parts {
					out[i] = p
				}
				return out, nil
			}),

		Positional("utilities.string-utils.join", "Join array items with a separator",
			[]string{"items", "separator"},
			func(_ context.Context, args []any) (any, error) {
				items, err := toSlice(args[0])
				if err != nil {
					return nil, err
				}
				sep, err := toString(args[1])
				if err != nil {
					return nil, fmt.Errorf("separator: %w", err)
				}
				parts := make([]string, len(items))
				for i, item := range items {
					if parts[i], err = toString(item); err != nil {
						return nil, fmt.Errorf("item %d: %w", i, err)
					}
				}
				return strings.Join(parts, sep), nil
			}),

		Positional("utilities.string-utils.replace", "Replace every occurrence of search",
			[]string{"str", "search", "replacement"},
			func(_ context.Context, args []any) (any, error) {
				vals := make([]string, 3)
				for i, name := range []string{"str", "search", "replacement"} {
					s, err := toString(args[i])
					if err != nil {
						return nil, fmt.Errorf("%s: %w", name, err)
					}
					vals[i] = s
				}
				return strings.ReplaceAll(vals[0], vals[1], vals[2]), nil
			}),

		Object("utilities.string-utils.truncate", "Cut a string to length runes, appending suffix when cut",
			[]string{"str", "length", "suffix"},
			func(_ context.Context, opts map[string]any) (any, error) {
				s, err := toString(opts["str"])
				if err != nil {
					return nil, err
				}
				n := intParam(opts, "length", 100)
				suffix := stringParam(opts, "suffix", "...")
				if n < 0 {
					return nil, fmt.Errorf("length must be non-negative")
				}
				if utf8.RuneCountInString(s) <= n {
					return s, nil
				}
				return string([]rune(s)[:n]) + suffix, nil
			}),
	}
}

func stringFunc(name, description string, fn func(string) string) Descriptor {
	return Scalar("utilities.string-utils."+name, description, "str",
		func(_ context.Context, v any) (any, error) {
			s, err := toString(v)
			if err != nil {
				return nil, err
			}
			return fn(s), nil
		})
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
