package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationResult_EmptyIsValid(t *testing.T) {
	r := &ValidationResult{}
	assert.True(t, r.Valid())
	assert.NoError(t, r.ToError())
}

func TestValidationResult_Add(t *testing.T) {
	r := &ValidationResult{}
	r.Add("steps[0].module", "s1", ErrCodeInvalidModulePath, "bad path")

	assert.False(t, r.Valid())
	require.Len(t, r.Issues, 1)
	assert.Equal(t, "steps[0].module", r.Issues[0].Path)
	assert.Equal(t, "s1", r.Issues[0].StepID)
	assert.Equal(t, ErrCodeInvalidModulePath, r.Issues[0].Code)
}

func TestValidationResult_Merge(t *testing.T) {
	r1 := &ValidationResult{}
	r1.Add("steps[0]", "", ErrCodeValidation, "err1")
	r2 := &ValidationResult{}
	r2.Add("steps[1]", "", ErrCodeValidation, "err2")

	r1.Merge(r2)
	r1.Merge(nil)
	assert.Len(t, r1.Issues, 2)
}

func TestValidationResult_ToError_Single(t *testing.T) {
	r := &ValidationResult{}
	r.Add("steps[2].id", "dup", ErrCodeValidation, "duplicate step id")

	err := r.ToError()
	require.Error(t, err)
	ee, ok := AsEngineError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeValidation, ee.Code)
	assert.Equal(t, "dup", ee.StepID)
	assert.Contains(t, ee.Message, "duplicate step id")
}

func TestValidationResult_ToError_Multiple(t *testing.T) {
	r := &ValidationResult{}
	r.Add("steps[0]", "a", ErrCodeValidation, "first")
	r.Add("steps[1]", "b", ErrCodeValidation, "second")

	err := r.ToError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 validation errors")
	assert.Contains(t, err.Error(), "second")
}
