package expressions

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

func TestCEL_Evaluate(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)
	assert.Equal(t, "cel", e.Name())
	ctx := context.Background()

	out, err := e.Evaluate(ctx, "1 + 2", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), out)

	data := map[string]any{"vars": map[string]any{"status": "active", "count": 5.0}}
	out, err = e.Evaluate(ctx, `vars.status == "active" && vars.count > 3.0`, data)
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = e.Evaluate(ctx, `input + "!"`, map[string]any{"input": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi!", out)
}

func TestCEL_ListResultIsNative(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	out, err := e.Evaluate(context.Background(), `["a", "b"]`, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, out)
}

func TestCEL_CompileError(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), "1 +", nil)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

	_, err = e.Evaluate(context.Background(), "", nil)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestCEL_CachesPrograms(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.Evaluate(context.Background(), "2 * 21", nil)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, e.cache.len())

	_, _ = e.Evaluate(context.Background(), "1 +", nil)
	assert.Equal(t, 1, e.cache.len())
}

func TestExpr_Evaluate(t *testing.T) {
	e := NewExprEngine()
	assert.Equal(t, "expr", e.Name())
	ctx := context.Background()

	out, err := e.Evaluate(ctx, `price * qty`, map[string]any{"price": 2.5, "qty": 4.0})
	require.NoError(t, err)
	assert.Equal(t, 10.0, out)

	out, err = e.Evaluate(ctx, `user.name + "!"`, map[string]any{"user": map[string]any{"name": "ada"}})
	require.NoError(t, err)
	assert.Equal(t, "ada!", out)

	out, err = e.Evaluate(ctx, `missing == nil`, nil)
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestExpr_CompileError(t *testing.T) {
	_, err := NewExprEngine().Evaluate(context.Background(), "1 +* 2", nil)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestGoJQ_Evaluate(t *testing.T) {
	e := NewGoJQEngine()
	assert.Equal(t, "jq", e.Name())
	ctx := context.Background()

	data := map[string]any{"items": []any{
		map[string]any{"name": "a", "n": int64(1)},
		map[string]any{"name": "b", "n": int64(2)},
	}}

	out, err := e.Evaluate(ctx, ".items[1].name", data)
	require.NoError(t, err)
	assert.Equal(t, "b", out)

	out, err = e.Evaluate(ctx, ".items[].name", data)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, out)

	out, err = e.Evaluate(ctx, "[.items[].n] | add", data)
	require.NoError(t, err)
	assert.Equal(t, 3.0, out)

	out, err = e.Evaluate(ctx, "empty", data)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestGoJQ_QueryArbitraryInput(t *testing.T) {
	results, err := NewGoJQEngine().Query(context.Background(), ".[] | . * 2", []any{1.0, 2.0})
	require.NoError(t, err)
	assert.Equal(t, []any{2.0, 4.0}, results)
}

func TestGoJQ_Errors(t *testing.T) {
	e := NewGoJQEngine()

	_, err := e.Evaluate(context.Background(), ".[", nil)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

	_, err = e.Evaluate(context.Background(), `error("bad")`, map[string]any{})
	assert.True(t, schema.IsCode(err, schema.ErrCodeExecution))

	out, err := e.Evaluate(context.Background(), "$ENV | length", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 0, out)
}
