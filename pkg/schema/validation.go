package schema

import (
	"fmt"
	"strings"
)

// ValidationIssue is a single problem found in a workflow config, located by
// a path such as "steps[1].then[0].module".
type ValidationIssue struct {
	Path    string `json:"path"`
	StepID  string `json:"step_id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (i ValidationIssue) String() string {
	if i.StepID != "" {
		return fmt.Sprintf("%s (step %s): %s", i.Path, i.StepID, i.Message)
	}
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

// ValidationResult aggregates all issues found in a config.
type ValidationResult struct {
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// Valid returns true if no issues were recorded.
func (r *ValidationResult) Valid() bool {
	return len(r.Issues) == 0
}

// Add records an issue.
func (r *ValidationResult) Add(path, stepID, code, message string) {
	r.Issues = append(r.Issues, ValidationIssue{Path: path, StepID: stepID, Code: code, Message: message})
}

// Merge appends the issues of other.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Issues = append(r.Issues, other.Issues...)
}

// ToError converts the result to an EngineError, or nil when valid.
// The error's StepID is the first offending step, if known.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}

	first := r.Issues[0]
	msg := first.String()
	if len(r.Issues) > 1 {
		lines := make([]string, 0, len(r.Issues))
		for _, is := range r.Issues {
			lines = append(lines, is.String())
		}
		msg = fmt.Sprintf("%d validation errors: %s", len(r.Issues), strings.Join(lines, "; "))
	}

	return NewError(ErrCodeValidation, msg).
		WithStep(first.StepID).
		WithDetails(map[string]any{"issues": r.Issues})
}
