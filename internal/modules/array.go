package modules

import (
	"context"
	"fmt"
)

// ArrayModules returns the utilities.array operations.
func ArrayModules() []Descriptor {
	return []Descriptor{
		arrayFunc("length", "Number of items", func(items []any) any { return float64(len(items)) }),
		arrayFunc("first", "First item, or null when empty", func(items []any) any {
			if len(items) == 0 {
				return nil
			}
			return items[0]
		}),
		arrayFunc("last", "Last item, or null when empty", func(items []any) any {
			if len(items) == 0 {
				return nil
			}
			return items[len(items)-1]
		}),

		Positional("utilities.array.pluck", "Collect one field from every object item",
			[]string{"array", "key"},
			func(_ context.Context, args []any) (any, error) {
				items, err := toSlice(args[0])
				if err != nil {
					return nil, err
				}
				key, err := toString(args[1])
				if err != nil {
					return nil, fmt.Errorf("key: %w", err)
				}
				out := make([]any, 0, len(items))
				for _, item := range items {
					if m, ok := item.(map[string]any); ok {
						out = append(out, m[key])
					} else {
						out = append(out, nil)
					}
				}
				return out, nil
			}),
	}
}

func arrayFunc(name, description string, fn func([]any) any) Descriptor {
	return Scalar("utilities.array."+name, description, "array",
		func(_ context.Context, v any) (any, error) {
			items, err := toSlice(v)
			if err != nil {
				return nil, err
			}
			return fn(items), nil
		})
}
