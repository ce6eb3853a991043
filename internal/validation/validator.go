package validation

import "github.com/seanmmay/b0t-sub000/pkg/schema"

// Validator checks workflow configs before execution and validates arbitrary
// JSON documents against caller-supplied JSON Schemas (Draft 2020-12).
type Validator interface {
	ValidateConfig(cfg *schema.WorkflowConfig) error
	ValidateDocument(doc any, documentSchema []byte) error
}

// ModuleLookup reports whether a module path resolves to a registered operation.
type ModuleLookup interface {
	Has(path string) bool
}
