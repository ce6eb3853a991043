package main

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanmmay/b0t-sub000/internal/modules"
	"github.com/seanmmay/b0t-sub000/internal/validation"
	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

const examplesDir = "../../examples"

func TestExamples_Validate(t *testing.T) {
	files, err := filepath.Glob(filepath.Join(examplesDir, "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	reg, err := modules.NewBuiltinRegistry(modules.BuiltinConfig{})
	require.NoError(t, err)
	v, err := validation.NewWorkflowValidator(reg)
	require.NoError(t, err)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			wf, err := loadWorkflowFile(file)
			require.NoError(t, err)
			cfg := wf.Config()
			result := v.Validate(&cfg)
			assert.True(t, result.Valid(), "issues: %v", result.Issues)
		})
	}
}

func TestExamples_DryRun(t *testing.T) {
	_, run := newTestEnv(t)

	out, err := run("", "dry-run", "--file", filepath.Join(examplesDir, "team-digest.yaml"), "--user", "u1",
		"--trigger-data", `{"team":"platform ops","items":[{"title":"rotate keys"},{"title":"upgrade pg"}]}`)
	require.NoError(t, err)
	var res schema.ExecutionResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.True(t, res.Success, res.Error)
	digest, ok := res.Output.(string)
	require.True(t, ok)
	assert.Contains(t, digest, `"channel": "#platform-ops"`)
	assert.Contains(t, digest, `"summary": "rotate keys, upgrade pg"`)

	out, err = run("", "dry-run", "--file", filepath.Join(examplesDir, "invoice-totals.yaml"), "--user", "u1",
		"--trigger-data", `{"lines":[{"sku":"a-1","qty":2,"price":19.5},{"sku":"b-7","qty":1,"price":120}]}`)
	require.NoError(t, err)
	res = schema.ExecutionResult{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.True(t, res.Success, res.Error)
	label, ok := res.Output.(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(label, "REVIEW BATCH "), label)
}
