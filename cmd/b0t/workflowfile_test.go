package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

const yamlWorkflow = `
name: greet
steps:
  - id: greet
    module: utilities.string-utils.capitalize
    inputs:
      str: "{{trigger.name}}"
    outputAs: greeting
  - id: check
    kind: condition
    test: 0
    then:
      - id: never
        module: utilities.string-utils.uppercase
        inputs: {str: x}
  - id: each
    kind: loop
    over: [1, 2]
    itemVariable: n
    steps:
      - id: add
        module: utilities.math.add
        inputs: {a: "{{n}}", b: 1}
`

func TestParseWorkflowFile_YAML(t *testing.T) {
	wf, err := parseWorkflowFile([]byte(yamlWorkflow), ".yaml")
	require.NoError(t, err)

	assert.Equal(t, "greet", wf.Name)
	require.Len(t, wf.Steps, 3)
	assert.Equal(t, schema.StepKindAction, wf.Steps[0].Kind)
	assert.Equal(t, "greeting", wf.Steps[0].Action.OutputAs)
	assert.Equal(t, map[string]any{"str": "{{trigger.name}}"}, wf.Steps[0].Action.Inputs)

	require.Equal(t, schema.StepKindCondition, wf.Steps[1].Kind)
	assert.Equal(t, 0.0, wf.Steps[1].Condition.Test)

	require.Equal(t, schema.StepKindLoop, wf.Steps[2].Kind)
	assert.Equal(t, []any{1.0, 2.0}, wf.Steps[2].Loop.Over)
}

func TestParseWorkflowFile_JSON(t *testing.T) {
	wf, err := parseWorkflowFile([]byte(`{"id":"wf-1","steps":[{"id":"s","module":"utilities.datetime.now","inputs":{}}]}`), ".JSON")
	require.NoError(t, err)
	assert.Equal(t, "wf-1", wf.ID)
	assert.Len(t, wf.Config().Steps, 1)
}

func TestParseWorkflowFile_Errors(t *testing.T) {
	_, err := parseWorkflowFile([]byte("name: empty\n"), ".yml")
	assert.ErrorContains(t, err, "no steps")

	_, err = parseWorkflowFile([]byte("steps:\n  - id: x\n    kind: parallel\n"), ".yml")
	assert.ErrorContains(t, err, "parallel")

	_, err = parseWorkflowFile([]byte("steps: [\n"), ".yml")
	assert.ErrorContains(t, err, "parse yaml")
}

func TestParseTriggerData(t *testing.T) {
	data, err := parseTriggerData("")
	require.NoError(t, err)
	assert.Nil(t, data)

	data, err = parseTriggerData(`{"name":"ada"}`)
	require.NoError(t, err)
	assert.Equal(t, "ada", data["name"])

	_, err = parseTriggerData(`[1]`)
	assert.Error(t, err)
}
