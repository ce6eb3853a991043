package store

import (
	"encoding/json"
	"time"

	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

// Workflow and organization statuses.
const (
	WorkflowStatusActive = "active"
	WorkflowStatusPaused = "paused"

	OrganizationStatusActive   = "active"
	OrganizationStatusInactive = "inactive"
)

// Workflow is a persisted workflow definition plus its run statistics.
type Workflow struct {
	ID             string                `json:"id"`
	UserID         string                `json:"user_id"`
	OrganizationID string                `json:"organization_id,omitempty"`
	Name           string                `json:"name"`
	Config         schema.WorkflowConfig `json:"config"`
	Trigger        json.RawMessage       `json:"trigger,omitempty"`
	Status         string                `json:"status"`
	RunCount       int64                 `json:"run_count"`
	LastRun        *time.Time            `json:"last_run,omitempty"`
	LastRunStatus  schema.RunStatus      `json:"last_run_status,omitempty"`
	LastRunError   string                `json:"last_run_error,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// Organization owns workflows; only active organizations may run them.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Active reports whether the organization may run workflows.
func (o *Organization) Active() bool {
	return o.Status == OrganizationStatusActive
}

// RunUpdate is a partial update of a run. Nil fields are left untouched.
type RunUpdate struct {
	Status      *schema.RunStatus
	Output      json.RawMessage
	Error       *string
	ErrorStep   *string
	CompletedAt *time.Time
	DurationMs  *int64
}

// WorkflowStatsUpdate records a finished run on its workflow.
// An empty LastRunError clears the column.
type WorkflowStatsUpdate struct {
	LastRun       time.Time
	LastRunStatus schema.RunStatus
	LastRunError  string
}

// RunFilter selects runs for ListRuns. Zero values match everything.
type RunFilter struct {
	WorkflowID string
	UserID     string
	Status     *schema.RunStatus
	Limit      int
}

// RunEvent is an immutable entry in a run's step log.
type RunEvent struct {
	ID        int64           `json:"id"`
	RunID     string          `json:"run_id"`
	StepID    string          `json:"step_id,omitempty"`
	Type      string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence"`
}

// Credential is one encrypted secret for a (user, platform) pair.
type Credential struct {
	UserID     string    `json:"user_id"`
	Platform   string    `json:"platform"`
	Ciphertext []byte    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
