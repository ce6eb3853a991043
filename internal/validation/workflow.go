package validation

import (
	"errors"

	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

// WorkflowValidator runs the two-stage pipeline:
//  1. Structural (JSON Schema)
//  2. Semantic (unique ids, registered modules, variable names)
type WorkflowValidator struct {
	jsonSchema *JSONSchemaValidator
	modules    ModuleLookup
}

// NewWorkflowValidator creates a WorkflowValidator.
// modules may be nil to skip registration checks.
func NewWorkflowValidator(modules ModuleLookup) (*WorkflowValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &WorkflowValidator{jsonSchema: jsv, modules: modules}, nil
}

// Validate returns every issue found in cfg.
// Structural errors short-circuit the semantic stage.
func (wv *WorkflowValidator) Validate(cfg *schema.WorkflowConfig) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if cfg == nil {
		result.Add("/", "", schema.ErrCodeValidation, "workflow config is nil")
		return result
	}

	if err := wv.jsonSchema.ValidateConfig(cfg); err != nil {
		addStructural(result, err)
		return result
	}

	result.Merge(validateSemantic(cfg, wv.modules))
	return result
}

// ValidateConfig satisfies the Validator interface.
func (wv *WorkflowValidator) ValidateConfig(cfg *schema.WorkflowConfig) error {
	return wv.Validate(cfg).ToError()
}

// ValidateDocument delegates to the underlying JSONSchemaValidator.
func (wv *WorkflowValidator) ValidateDocument(doc any, documentSchema []byte) error {
	return wv.jsonSchema.ValidateDocument(doc, documentSchema)
}

// Documents exposes the JSON Schema validator for document checks.
func (wv *WorkflowValidator) Documents() *JSONSchemaValidator {
	return wv.jsonSchema
}

func addStructural(result *schema.ValidationResult, err error) {
	var ee *schema.EngineError
	if !errors.As(err, &ee) {
		result.Add("/", "", schema.ErrCodeValidation, err.Error())
		return
	}
	if violations, ok := ee.Details["violations"].([]string); ok {
		for _, v := range violations {
			result.Add("/", "", schema.ErrCodeValidation, v)
		}
		return
	}
	result.Add("/", "", schema.ErrCodeValidation, ee.Message)
}

var _ Validator = (*WorkflowValidator)(nil)
