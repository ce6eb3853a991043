package expressions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScope_CopiesInitial(t *testing.T) {
	initial := map[string]any{"trigger": map[string]any{"id": "t1"}}
	s := NewScope(initial)

	s.Vars()["trigger"].(map[string]any)["id"] = "changed"
	assert.Equal(t, "t1", initial["trigger"].(map[string]any)["id"])

	empty := NewScope(nil)
	require.NotNil(t, empty.Vars())
	assert.Empty(t, empty.Vars())
}

func TestScope_SetGetResolve(t *testing.T) {
	s := NewScope(nil)
	s.Set("ts", "2024-05-01T00:00:00Z")

	v, ok := s.Get("ts")
	require.True(t, ok)
	assert.Equal(t, "2024-05-01T00:00:00Z", v)
	assert.Equal(t, "at 2024-05-01T00:00:00Z", s.Resolve("at {{ts}}"))
}

func TestScope_PushPopNewBinding(t *testing.T) {
	s := NewScope(map[string]any{"keep": 1.0})

	pop := s.Push(map[string]any{"item": "a", "itemIndex": 0})
	assert.Equal(t, "a", s.Resolve("{{item}}"))
	pop()

	_, ok := s.Get("item")
	assert.False(t, ok)
	_, ok = s.Get("itemIndex")
	assert.False(t, ok)
	assert.Equal(t, 1.0, s.Resolve("{{keep}}"))
}

func TestScope_PushRestoresShadowed(t *testing.T) {
	s := NewScope(map[string]any{"item": "outer"})

	pop := s.Push(map[string]any{"item": "inner"})
	assert.Equal(t, "inner", s.Resolve("{{item}}"))
	pop()

	assert.Equal(t, "outer", s.Resolve("{{item}}"))
}

func TestScope_Snapshot(t *testing.T) {
	s := NewScope(map[string]any{"list": []any{1.0}})
	snap := s.Snapshot()
	snap["list"].([]any)[0] = 99.0

	assert.Equal(t, 1.0, s.Resolve("{{list.0}}"))
}

func TestDeepCopy(t *testing.T) {
	src := map[string]any{"a": []any{map[string]any{"b": "c"}}}
	cp := DeepCopy(src).(map[string]any)
	cp["a"].([]any)[0].(map[string]any)["b"] = "x"
	assert.Equal(t, "c", src["a"].([]any)[0].(map[string]any)["b"])
	assert.Equal(t, 5, DeepCopy(5))
}
