package expressions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_PlainValuesAreIdempotent(t *testing.T) {
	vars := map[string]any{"a": map[string]any{"b": 42.0}}
	plain := []any{
		"hello",
		"",
		12.5,
		true,
		nil,
		"{ not a token }",
		map[string]any{"k": "v", "n": 1.0},
		[]any{"x", 2.0, false},
	}
	for _, v := range plain {
		once := Resolve(v, vars)
		assert.Equal(t, v, once)
		assert.Equal(t, once, Resolve(once, vars))
	}
}

func TestResolve_ExactTokenKeepsNativeType(t *testing.T) {
	vars := map[string]any{"a": map[string]any{"b": 42.0}}

	out := Resolve("{{a.b}}", vars)
	assert.Equal(t, 42.0, out)
	assert.IsType(t, float64(0), out)

	obj := Resolve("{{a}}", vars)
	assert.Equal(t, map[string]any{"b": 42.0}, obj)
}

func TestResolve_ExactTokenTrimsWhitespace(t *testing.T) {
	vars := map[string]any{"user": map[string]any{"id": "u1"}}
	assert.Equal(t, "u1", Resolve("{{ user.id }}", vars))
}

func TestResolve_MixedTextStringifies(t *testing.T) {
	vars := map[string]any{
		"a":    map[string]any{"b": 42.0},
		"name": "ada",
		"ok":   true,
		"list": []any{1.0, "two"},
	}
	assert.Equal(t, "val=42", Resolve("val={{a.b}}", vars))
	assert.Equal(t, "hi ada, ok=true", Resolve("hi {{name}}, ok={{ok}}", vars))
	assert.Equal(t, `items: [1,"two"]`, Resolve("items: {{list}}", vars))
}

func TestResolve_MissingPath(t *testing.T) {
	vars := map[string]any{"a": map[string]any{"b": 1.0}}

	assert.Nil(t, Resolve("{{a.c}}", vars))
	assert.Nil(t, Resolve("{{missing.deep.path}}", vars))
	assert.Equal(t, "x= y", Resolve("x={{a.c}} y", vars))
	assert.Equal(t, "nil=", Resolve("nil={{n}}", map[string]any{"n": nil}))
}

func TestResolve_NumericIndex(t *testing.T) {
	vars := map[string]any{
		"items": []any{
			map[string]any{"name": "first"},
			map[string]any{"name": "second"},
		},
		"tags": []string{"x", "y"},
	}
	assert.Equal(t, "second", Resolve("{{items.1.name}}", vars))
	assert.Equal(t, "y", Resolve("{{tags.1}}", vars))
	assert.Nil(t, Resolve("{{items.5.name}}", vars))
	assert.Nil(t, Resolve("{{items.-1}}", vars))
}

func TestResolve_RecursesIntoContainers(t *testing.T) {
	vars := map[string]any{"ts": "2024-01-01", "n": 3.0}
	in := map[string]any{
		"str":    "{{ts}}",
		"nested": map[string]any{"count": "{{n}}", "label": "n={{n}}"},
		"list":   []any{"{{n}}", "plain"},
	}

	out := Resolve(in, vars).(map[string]any)
	assert.Equal(t, "2024-01-01", out["str"])
	nested := out["nested"].(map[string]any)
	assert.Equal(t, 3.0, nested["count"])
	assert.Equal(t, "n=3", nested["label"])
	assert.Equal(t, []any{3.0, "plain"}, out["list"])

	// Input untouched.
	assert.Equal(t, "{{ts}}", in["str"])
}

func TestResolve_UnclosedTokenKeptVerbatim(t *testing.T) {
	vars := map[string]any{"a": "A"}
	assert.Equal(t, "{{a", Resolve("{{a", vars))
	assert.Equal(t, "A and {{b", Resolve("{{a}} and {{b", vars))
}

func TestResolve_DottedKeyMatchedDirectly(t *testing.T) {
	vars := map[string]any{"a.b": "direct", "a": map[string]any{"b": "walked"}}
	assert.Equal(t, "direct", Resolve("{{a.b}}", vars))
}

func TestResolveMap_Nil(t *testing.T) {
	out := ResolveMap(nil, nil)
	require.NotNil(t, out)
	assert.Empty(t, out)
}

func TestExactToken(t *testing.T) {
	path, ok := ExactToken("{{ a.b }}")
	assert.True(t, ok)
	assert.Equal(t, "a.b", path)

	for _, s := range []string{"x{{a}}", "{{a}}x", "{{a}} {{b}}", "{{}}", "plain"} {
		_, ok := ExactToken(s)
		assert.False(t, ok, s)
	}
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "3.5", Stringify(3.5))
	assert.Equal(t, "100000000", Stringify(1e8))
	assert.Equal(t, "7", Stringify(int64(7)))
	assert.Equal(t, "false", Stringify(false))
	assert.Equal(t, `{"k":"v"}`, Stringify(map[string]any{"k": "v"}))
}
