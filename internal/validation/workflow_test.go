package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

type fakeLookup map[string]bool

func (f fakeLookup) Has(path string) bool { return f[path] }

var registered = fakeLookup{
	"utilities.datetime.now":            true,
	"utilities.string-utils.capitalize": true,
	"utilities.math.add":                true,
}

func newValidator(t *testing.T) *WorkflowValidator {
	t.Helper()
	v, err := NewWorkflowValidator(registered)
	require.NoError(t, err)
	return v
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := &schema.WorkflowConfig{Steps: []schema.Step{
		schema.NewActionStep("s1", "utilities.datetime.now", nil, "ts"),
		schema.NewConditionStep("c1", "{{ts}}",
			[]schema.Step{schema.NewActionStep("t1", "utilities.string-utils.capitalize", map[string]any{"str": "{{ts}}"}, "")},
			nil),
		schema.NewLoopStep("l1", []any{1.0, 2.0}, "n",
			[]schema.Step{schema.NewActionStep("b1", "utilities.math.add", map[string]any{"a": "{{n}}", "b": 1.0}, "sum")}),
	}}

	result := newValidator(t).Validate(cfg)
	assert.True(t, result.Valid(), "%v", result.Issues)
	assert.NoError(t, newValidator(t).ValidateConfig(cfg))
}

func TestValidate_Nil(t *testing.T) {
	result := newValidator(t).Validate(nil)
	assert.False(t, result.Valid())
}

func TestValidate_EmptySteps(t *testing.T) {
	err := newValidator(t).ValidateConfig(&schema.WorkflowConfig{Steps: []schema.Step{}})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestValidate_DuplicateIDsAcrossBranches(t *testing.T) {
	cfg := &schema.WorkflowConfig{Steps: []schema.Step{
		schema.NewActionStep("dup", "utilities.datetime.now", nil, ""),
		schema.NewConditionStep("c", true,
			[]schema.Step{schema.NewActionStep("dup", "utilities.datetime.now", nil, "")}, nil),
	}}

	result := newValidator(t).Validate(cfg)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "steps[1].then[0].id", result.Issues[0].Path)
	assert.Equal(t, "dup", result.Issues[0].StepID)
}

func TestValidate_UnregisteredModule(t *testing.T) {
	cfg := &schema.WorkflowConfig{Steps: []schema.Step{
		schema.NewActionStep("s1", "social.twitter.post", nil, ""),
	}}

	result := newValidator(t).Validate(cfg)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, schema.ErrCodeModuleNotFound, result.Issues[0].Code)

	err := result.ToError()
	ee, ok := schema.AsEngineError(err)
	require.True(t, ok)
	assert.Equal(t, "s1", ee.StepID)
}

func TestValidate_NilLookupSkipsModuleCheck(t *testing.T) {
	v, err := NewWorkflowValidator(nil)
	require.NoError(t, err)

	cfg := &schema.WorkflowConfig{Steps: []schema.Step{
		schema.NewActionStep("s1", "anything.goes.here", nil, ""),
	}}
	assert.True(t, v.Validate(cfg).Valid())
}

func TestValidate_BadVariableNames(t *testing.T) {
	cfg := &schema.WorkflowConfig{Steps: []schema.Step{
		schema.NewActionStep("s1", "utilities.datetime.now", nil, "a.b"),
		schema.NewActionStep("s2", "utilities.datetime.now", nil, "user"),
		schema.NewLoopStep("l1", "{{items}}", "my item",
			[]schema.Step{schema.NewActionStep("b1", "utilities.datetime.now", nil, "")}),
	}}

	result := newValidator(t).Validate(cfg)
	require.Len(t, result.Issues, 3)
	assert.Equal(t, "steps[0].outputAs", result.Issues[0].Path)
	assert.Equal(t, "steps[1].outputAs", result.Issues[1].Path)
	assert.Equal(t, "steps[2].itemVariable", result.Issues[2].Path)
}

func TestValidate_EmptyLoopBody(t *testing.T) {
	cfg := &schema.WorkflowConfig{Steps: []schema.Step{
		schema.NewLoopStep("l1", "{{items}}", "item", nil),
	}}
	result := newValidator(t).Validate(cfg)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "steps[0].steps", result.Issues[0].Path)
}

func TestValidateRawConfig(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	valid := `{"steps":[{"id":"a","module":"utilities.datetime.now"}]}`
	assert.NoError(t, v.ValidateRawConfig([]byte(valid)))

	cases := map[string]string{
		"missing module":    `{"steps":[{"id":"a"}]}`,
		"unknown kind":      `{"steps":[{"id":"a","kind":"parallel"}]}`,
		"condition no then": `{"steps":[{"id":"c","kind":"condition","test":true}]}`,
		"loop no variable":  `{"steps":[{"id":"l","kind":"loop","over":[],"steps":[]}]}`,
		"nested bad step":   `{"steps":[{"id":"c","kind":"condition","test":1,"then":[{"module":"x.y.z"}]}]}`,
		"not json":          `{"steps":`,
		"missing steps":     `{}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			err := v.ValidateRawConfig([]byte(raw))
			require.Error(t, err)
			assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
		})
	}
}

func TestValidateDocument(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	docSchema := []byte(`{"type":"object","required":["name"],"properties":{"age":{"type":"integer","minimum":0}}}`)

	assert.NoError(t, v.ValidateDocument(map[string]any{"name": "ada", "age": 36}, docSchema))

	err = v.ValidateDocument(map[string]any{"age": -1}, docSchema)
	require.Error(t, err)
	ee, ok := schema.AsEngineError(err)
	require.True(t, ok)
	violations, ok := ee.Details["violations"].([]string)
	require.True(t, ok)
	assert.Len(t, violations, 2)

	// Cached on second use.
	assert.NoError(t, v.ValidateDocument(map[string]any{"name": "x"}, docSchema))
	assert.Len(t, v.cache, 1)

	// No schema, nothing to check.
	assert.NoError(t, v.ValidateDocument("anything", nil))

	// Broken schema.
	err = v.ValidateDocument(map[string]any{}, []byte(`{"type": 5}`))
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestValidateConfig_RoundTripsWireShape(t *testing.T) {
	raw := `{"steps":[{"id":"c","kind":"condition","test":0,"then":[{"id":"t","module":"utilities.math.add","inputs":{"a":1,"b":2}}]}]}`
	var cfg schema.WorkflowConfig
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	assert.NoError(t, newValidator(t).ValidateConfig(&cfg))
}

func TestValidate_OutputShadowsLoopBinding(t *testing.T) {
	cfg := &schema.WorkflowConfig{Steps: []schema.Step{
		schema.NewLoopStep("outer", []any{1.0}, "n", []schema.Step{
			schema.NewActionStep("a1", "utilities.math.add", map[string]any{"a": "{{n}}", "b": 1.0}, "n"),
			schema.NewLoopStep("inner", []any{2.0}, "m", []schema.Step{
				schema.NewActionStep("a2", "utilities.math.add", map[string]any{"a": "{{m}}", "b": 1.0}, "nIndex"),
			}),
			schema.NewActionStep("a3", "utilities.math.add", map[string]any{"a": 1.0, "b": 1.0}, "m"),
		}),
		schema.NewActionStep("after", "utilities.math.add", map[string]any{"a": 1.0, "b": 1.0}, "n"),
	}}

	result := newValidator(t).Validate(cfg)
	require.Len(t, result.Issues, 2, "%v", result.Issues)
	assert.Equal(t, "steps[0].steps[0].outputAs", result.Issues[0].Path)
	assert.Equal(t, "a1", result.Issues[0].StepID)
	assert.Contains(t, result.Issues[0].Message, "loop outer")
	assert.Equal(t, "steps[0].steps[1].steps[0].outputAs", result.Issues[1].Path)
	assert.Equal(t, "a2", result.Issues[1].StepID)
}
