package modules

import (
	"context"
	"fmt"
	"math"
)

// MathModules returns the utilities.math operations. Results are float64.
func MathModules() []Descriptor {
	return []Descriptor{
		binary("add", "a + b", func(a, b float64) (float64, error) { return a + b, nil }),
		binary("subtract", "a - b", func(a, b float64) (float64, error) { return a - b, nil }),
		binary("multiply", "a * b", func(a, b float64) (float64, error) { return a * b, nil }),
		binary("divide", "a / b", func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return a / b, nil
		}),

		Object("utilities.math.round", "Round value to a number of decimals",
			[]string{"value", "decimals"},
			func(_ context.Context, opts map[string]any) (any, error) {
				v, err := toFloat(opts["value"])
				if err != nil {
					return nil, fmt.Errorf("value: %w", err)
				}
				p := math.Pow(10, float64(intParam(opts, "decimals", 0)))
				return math.Round(v*p) / p, nil
			}),

		Scalar("utilities.math.sum", "Sum an array of numbers", "numbers",
			func(_ context.Context, v any) (any, error) {
				items, err := toSlice(v)
				if err != nil {
					return nil, err
				}
				total := 0.0
				for i, item := range items {
					f, err := toFloat(item)
					if err != nil {
						return nil, fmt.Errorf("item %d: %w", i, err)
					}
					total += f
				}
				return total, nil
			}),
	}
}

func binary(name, description string, fn func(a, b float64) (float64, error)) Descriptor {
	return Positional("utilities.math."+name, description, []string{"a", "b"},
		func(_ context.Context, args []any) (any, error) {
			a, err := toFloat(args[0])
			if err != nil {
				return nil, fmt.Errorf("a: %w", err)
			}
			b, err := toFloat(args[1])
			if err != nil {
				return nil, fmt.Errorf("b: %w", err)
			}
			return fn(a, b)
		})
}
