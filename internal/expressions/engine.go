package expressions

import (
	"context"
	"sync"
)

// Engine evaluates an expression against a data map.
// Implementations: CEL (predicates), Expr (general logic), GoJQ (JSON transforms).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// programCache memoizes compiled programs by expression source.
// Safe for concurrent use.
type programCache[P any] struct {
	mu    sync.RWMutex
	items map[string]P
}

func newProgramCache[P any]() *programCache[P] {
	return &programCache[P]{items: make(map[string]P)}
}

// getOrCompile returns the cached program for expression, compiling it on a miss.
// Failed compilations are not cached.
func (c *programCache[P]) getOrCompile(expression string, compile func(string) (P, error)) (P, error) {
	c.mu.RLock()
	if p, ok := c.items[expression]; ok {
		c.mu.RUnlock()
		return p, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.items[expression]; ok {
		return p, nil
	}
	p, err := compile(expression)
	if err != nil {
		var zero P
		return zero, err
	}
	c.items[expression] = p
	return p, nil
}

func (c *programCache[P]) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
