// Package modules holds the catalog of callable operations a workflow step can
// invoke and the dispatcher that adapts named step inputs to each callable's
// parameter shape.
package modules

import (
	"context"
	"fmt"
)

// ParameterStyle describes how a callable expects its arguments.
type ParameterStyle int

const (
	// StyleNone takes no arguments.
	StyleNone ParameterStyle = iota
	// StyleSingleObject takes the whole inputs map as one options object.
	StyleSingleObject
	// StyleSingleScalar takes exactly one value.
	StyleSingleScalar
	// StylePositional takes one argument per declared parameter name, in order.
	StylePositional
)

func (s ParameterStyle) String() string {
	switch s {
	case StyleNone:
		return "none"
	case StyleSingleObject:
		return "object"
	case StyleSingleScalar:
		return "scalar"
	case StylePositional:
		return "positional"
	default:
		return fmt.Sprintf("style(%d)", int(s))
	}
}

// InvokeFunc is the raw callable behind a registered operation.
// args has already been shaped according to the descriptor's ParameterStyle.
type InvokeFunc func(ctx context.Context, args []any) (any, error)

// Descriptor registers one operation under a category.module.function path.
type Descriptor struct {
	Path           string
	Description    string
	ParameterNames []string
	Style          ParameterStyle
	Invoke         InvokeFunc
}

// ModuleInfo is a summary of a registered operation for listing.
type ModuleInfo struct {
	Path        string   `json:"path"`
	Description string   `json:"description,omitempty"`
	Style       string   `json:"style"`
	Parameters  []string `json:"parameters,omitempty"`
}

// NoArgs builds a descriptor for a callable without parameters.
func NoArgs(path, description string, fn func(ctx context.Context) (any, error)) Descriptor {
	return Descriptor{
		Path:        path,
		Description: description,
		Style:       StyleNone,
		Invoke: func(ctx context.Context, _ []any) (any, error) {
			return fn(ctx)
		},
	}
}

// Object builds a descriptor for a callable taking a single options object.
// Empty inputs arrive as an empty, non-nil map.
func Object(path, description string, params []string, fn func(ctx context.Context, opts map[string]any) (any, error)) Descriptor {
	return Descriptor{
		Path:           path,
		Description:    description,
		ParameterNames: params,
		Style:          StyleSingleObject,
		Invoke: func(ctx context.Context, args []any) (any, error) {
			opts := map[string]any{}
			if len(args) > 0 {
				if m, ok := args[0].(map[string]any); ok && m != nil {
					opts = m
				}
			}
			return fn(ctx, opts)
		},
	}
}

// Scalar builds a descriptor for a callable taking one value.
// A call without arguments passes nil.
func Scalar(path, description, param string, fn func(ctx context.Context, value any) (any, error)) Descriptor {
	return Descriptor{
		Path:           path,
		Description:    description,
		ParameterNames: []string{param},
		Style:          StyleSingleScalar,
		Invoke: func(ctx context.Context, args []any) (any, error) {
			var v any
			if len(args) > 0 {
				v = args[0]
			}
			return fn(ctx, v)
		},
	}
}

// Positional builds a descriptor for a callable with ordered named parameters.
// args always has one slot per declared name; unsupplied slots are nil.
func Positional(path, description string, params []string, fn func(ctx context.Context, args []any) (any, error)) Descriptor {
	return Descriptor{
		Path:           path,
		Description:    description,
		ParameterNames: params,
		Style:          StylePositional,
		Invoke: func(ctx context.Context, args []any) (any, error) {
			if len(args) < len(params) {
				padded := make([]any, len(params))
				copy(padded, args)
				args = padded
			}
			return fn(ctx, args)
		},
	}
}
