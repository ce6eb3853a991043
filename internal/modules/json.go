package modules

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/seanmmay/b0t-sub000/internal/expressions"
	"github.com/seanmmay/b0t-sub000/internal/validation"
)

// JSONModules returns the utilities.json operations.
func JSONModules(jq *expressions.GoJQEngine, docs *validation.JSONSchemaValidator) []Descriptor {
	return []Descriptor{
		Scalar("utilities.json.parse", "Decode a JSON string", "str",
			func(_ context.Context, v any) (any, error) {
				s, err := toString(v)
				if err != nil {
					return nil, err
				}
				var out any
				if err := json.Unmarshal([]byte(s), &out); err != nil {
					return nil, fmt.Errorf("invalid JSON: %w", err)
				}
				return out, nil
			}),

		Object("utilities.json.stringify", "Encode a value as JSON, optionally indented",
			[]string{"value", "indent"},
			func(_ context.Context, opts map[string]any) (any, error) {
				var (
					b   []byte
					err error
				)
				if n := intParam(opts, "indent", 0); n > 0 {
					b, err = json.MarshalIndent(opts["value"], "", fmt.Sprintf("%*s", n, ""))
				} else {
					b, err = json.Marshal(opts["value"])
				}
				if err != nil {
					return nil, err
				}
				return string(b), nil
			}),

		Positional("utilities.json.query", "Run a jq program against data",
			[]string{"data", "query"},
			func(ctx context.Context, args []any) (any, error) {
				q, err := toString(args[1])
				if err != nil {
					return nil, fmt.Errorf("query: %w", err)
				}
				results, err := jq.Query(ctx, q, args[0])
				if err != nil {
					return nil, err
				}
				switch len(results) {
				case 0:
					return nil, nil
				case 1:
					return results[0], nil
				default:
					return results, nil
				}
			}),

		Positional("utilities.json.validate", "Check data against a JSON Schema",
			[]string{"data", "schema"},
			func(_ context.Context, args []any) (any, error) {
				raw, err := schemaBytes(args[1])
				if err != nil {
					return nil, err
				}
				if err := docs.ValidateDocument(args[0], raw); err != nil {
					return map[string]any{"valid": false, "error": err.Error()}, nil
				}
				return map[string]any{"valid": true}, nil
			}),
	}
}

// schemaBytes accepts a schema as a JSON string or an already-decoded object.
func schemaBytes(v any) ([]byte, error) {
	switch s := v.(type) {
	case string:
		return []byte(s), nil
	case map[string]any, bool:
		return json.Marshal(s)
	default:
		return nil, fmt.Errorf("schema must be an object or JSON string, got %T", v)
	}
}
