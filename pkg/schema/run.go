package schema

import "time"

// RunStatus is the lifecycle state of a workflow run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusError   RunStatus = "error"
)

// Terminal reports whether the status is a final state.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusError
}

// Trigger types recorded on runs.
const (
	TriggerManual   = "manual"
	TriggerWebhook  = "webhook"
	TriggerSchedule = "cron"
	TriggerChat     = "chat"
	TriggerDryRun   = "dry-run"
)

// WorkflowRun is one concrete execution attempt of a workflow.
// CompletedAt and DurationMs are set iff Status is terminal.
type WorkflowRun struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflow_id,omitempty"`
	UserID      string         `json:"user_id"`
	Status      RunStatus      `json:"status"`
	TriggerType string         `json:"trigger_type"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
	Output      any            `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	ErrorStep   string         `json:"error_step,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	DurationMs  *int64         `json:"duration_ms,omitempty"`
}

// ExecutionResult is the outcome returned to callers of the executor.
// Failures are carried in the value, never as a Go error.
type ExecutionResult struct {
	Success   bool   `json:"success"`
	Output    any    `json:"output,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorStep string `json:"errorStep,omitempty"`
	RunID     string `json:"runId,omitempty"`
}
