package modules

import (
	"time"

	"github.com/seanmmay/b0t-sub000/internal/expressions"
	"github.com/seanmmay/b0t-sub000/internal/validation"
)

// BuiltinConfig wires shared dependencies into the built-in catalog.
type BuiltinConfig struct {
	HTTP HTTPConfig
	// Now overrides the clock used by utilities.datetime; nil means time.Now.
	Now func() time.Time
	// Documents backs utilities.json.validate; nil builds a fresh validator.
	Documents *validation.JSONSchemaValidator
}

// RegisterBuiltins registers every built-in operation in reg.
func RegisterBuiltins(reg *Registry, cfg BuiltinConfig) error {
	docs := cfg.Documents
	if docs == nil {
		var err error
		if docs, err = validation.NewJSONSchemaValidator(); err != nil {
			return err
		}
	}
	celEngine, err := expressions.NewCELEngine()
	if err != nil {
		return err
	}

	all := make([]Descriptor, 0, 48)
	all = append(all, DateTimeModules(cfg.Now)...)
	all = append(all, StringModules()...)
	all = append(all, MathModules()...)
	all = append(all, ArrayModules()...)
	all = append(all, JSONModules(expressions.NewGoJQEngine(), docs)...)
	all = append(all, ExpressionModules(expressions.NewExprEngine(), celEngine)...)
	all = append(all, CryptoModules()...)
	all = append(all, HTTPModules(cfg.HTTP)...)

	for _, d := range all {
		if err := reg.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// NewBuiltinRegistry returns a Registry preloaded with the built-in catalog.
func NewBuiltinRegistry(cfg BuiltinConfig) (*Registry, error) {
	reg := NewRegistry()
	if err := RegisterBuiltins(reg, cfg); err != nil {
		return nil, err
	}
	return reg, nil
}
