package store

import (
	"context"

	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

// WorkflowStore is the persistence contract the executor depends on.
// Missing rows are reported as NOT_FOUND engine errors.
type WorkflowStore interface {
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)
	GetOrganization(ctx context.Context, id string) (*Organization, error)

	CreateRun(ctx context.Context, run *schema.WorkflowRun) error
	UpdateRun(ctx context.Context, id string, update RunUpdate) error
	GetRun(ctx context.Context, id string) (*schema.WorkflowRun, error)

	// UpdateWorkflowStats increments run_count atomically and records the
	// outcome of the latest run.
	UpdateWorkflowStats(ctx context.Context, id string, update WorkflowStatsUpdate) error
}

// RunEventLog is the append-only per-run step log.
type RunEventLog interface {
	// AppendRunEvent assigns the next per-run sequence number to ev.
	AppendRunEvent(ctx context.Context, ev *RunEvent) error
	ListRunEvents(ctx context.Context, runID string) ([]*RunEvent, error)
}

// CredentialStore persists encrypted user credentials.
type CredentialStore interface {
	PutCredential(ctx context.Context, c *Credential) error
	ListCredentials(ctx context.Context, userID string) ([]*Credential, error)
	DeleteCredential(ctx context.Context, userID, platform string) error
}

// Store is the full persistence layer. All implementations must be safe for
// concurrent use.
type Store interface {
	WorkflowStore
	RunEventLog
	CredentialStore

	CreateOrganization(ctx context.Context, org *Organization) error
	SetOrganizationStatus(ctx context.Context, id, status string) error

	CreateWorkflow(ctx context.Context, wf *Workflow) error
	ListWorkflows(ctx context.Context, userID string) ([]*Workflow, error)

	ListRuns(ctx context.Context, filter RunFilter) ([]*schema.WorkflowRun, error)

	Migrate(ctx context.Context) error
	Close() error
}
