package modules

import (
	"context"
	"fmt"

	"github.com/seanmmay/b0t-sub000/internal/expressions"
)

// ExpressionModules returns utilities.expression operations backed by the
// expr and CEL engines. Variables are passed explicitly through inputs, e.g.
// {"expression": "price * qty", "variables": {"price": "{{item.price}}", "qty": 2}}.
func ExpressionModules(exprEngine *expressions.ExprEngine, celEngine *expressions.CELEngine) []Descriptor {
	return []Descriptor{
		Object("utilities.expression.evaluate", "Evaluate an expr-lang expression",
			[]string{"expression", "variables"},
			func(ctx context.Context, opts map[string]any) (any, error) {
				src, vars, err := expressionInputs(opts)
				if err != nil {
					return nil, err
				}
				return exprEngine.Evaluate(ctx, src, vars)
			}),

		Object("utilities.expression.cel", "Evaluate a CEL expression over vars and input",
			[]string{"expression", "variables", "input"},
			func(ctx context.Context, opts map[string]any) (any, error) {
				src, vars, err := expressionInputs(opts)
				if err != nil {
					return nil, err
				}
				return celEngine.Evaluate(ctx, src, map[string]any{"vars": vars, "input": opts["input"]})
			}),
	}
}

func expressionInputs(opts map[string]any) (string, map[string]any, error) {
	src := stringParam(opts, "expression", "")
	if src == "" {
		return "", nil, fmt.Errorf("expression is required")
	}
	vars := map[string]any{}
	if raw, ok := opts["variables"]; ok && raw != nil {
		m, ok := raw.(map[string]any)
		if !ok {
			return "", nil, fmt.Errorf("variables must be an object, got %T", raw)
		}
		vars = m
	}
	return src, vars, nil
}
