package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

// LibSQLStore implements Store on libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

var _ Store = (*LibSQLStore)(nil)

// NewLibSQLStore opens a libSQL database at the given path.
// The path should be a file URI, e.g. "file:/path/to/b0t.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// --- Organizations ---

func (s *LibSQLStore) CreateOrganization(ctx context.Context, org *Organization) error {
	if org.Status == "" {
		org.Status = OrganizationStatusActive
	}
	org.CreatedAt = timeOrNow(org.CreatedAt)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO organizations (id, name, status, created_at) VALUES (?, ?, ?, ?)`,
		org.ID, org.Name, org.Status, org.CreatedAt,
	)
	if err != nil {
		return storeErr("insert organization", err)
	}
	return nil
}

func (s *LibSQLStore) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	org := &Organization{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, status, created_at FROM organizations WHERE id = ?`, id,
	).Scan(&org.ID, &org.Name, &org.Status, &org.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("organization", id)
	}
	if err != nil {
		return nil, storeErr("get organization", err)
	}
	return org, nil
}

func (s *LibSQLStore) SetOrganizationStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE organizations SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return storeErr("update organization", err)
	}
	return checkRowsAffected(res, "organization", id)
}

// --- Workflows ---

func (s *LibSQLStore) CreateWorkflow(ctx context.Context, wf *Workflow) error {
	cfg, err := encodeConfig(wf.Config)
	if err != nil {
		return err
	}
	if wf.Status == "" {
		wf.Status = WorkflowStatusActive
	}
	wf.CreatedAt = timeOrNow(wf.CreatedAt)
	wf.UpdatedAt = wf.CreatedAt
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflows (id, user_id, organization_id, name, config, trigger_config, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		wf.ID, wf.UserID, nullStr(wf.OrganizationID), wf.Name, cfg, nullRaw(wf.Trigger), wf.Status,
		wf.CreatedAt, wf.UpdatedAt,
	)
	if err != nil {
		return storeErr("insert workflow", err)
	}
	return nil
}

const workflowColumns = `id, user_id, organization_id, name, config, trigger_config, status, run_count,
	last_run, last_run_status, last_run_error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*Workflow, error) {
	wf := &Workflow{}
	var (
		orgID, trigger, lastStatus, lastErr sql.NullString
		lastRun                             sql.NullTime
		cfg                                 string
	)
	if err := row.Scan(&wf.ID, &wf.UserID, &orgID, &wf.Name, &cfg, &trigger, &wf.Status, &wf.RunCount,
		&lastRun, &lastStatus, &lastErr, &wf.CreatedAt, &wf.UpdatedAt); err != nil {
		return nil, err
	}
	wf.OrganizationID = orgID.String
	wf.Trigger = rawOrNil(trigger)
	wf.LastRunStatus = schema.RunStatus(lastStatus.String)
	wf.LastRunError = lastErr.String
	if lastRun.Valid {
		t := lastRun.Time
		wf.LastRun = &t
	}
	if err := decodeConfig([]byte(cfg), wf); err != nil {
		return nil, err
	}
	return wf, nil
}

func (s *LibSQLStore) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	wf, err := scanWorkflow(s.db.QueryRowContext(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("workflow", id)
	}
	if err != nil {
		return nil, storeErr("get workflow", err)
	}
	return wf, nil
}

func (s *LibSQLStore) ListWorkflows(ctx context.Context, userID string) ([]*Workflow, error) {
	q := `SELECT ` + workflowColumns + ` FROM workflows`
	var args []any
	if userID != "" {
		q += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	q += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storeErr("list workflows", err)
	}
	defer rows.Close()

	var out []*Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, storeErr("scan workflow", err)
		}
		out = append(out, wf)
	}
	return out, rows.Err()
}

func (s *LibSQLStore) UpdateWorkflowStats(ctx context.Context, id string, u WorkflowStatsUpdate) error {
	lastRun := timeOrNow(u.LastRun)
	res, err := s.db.ExecContext(ctx,
		`UPDATE workflows SET run_count = run_count + 1, last_run = ?, last_run_status = ?, last_run_error = ?, updated_at = ?
		 WHERE id = ?`,
		lastRun, string(u.LastRunStatus), nullStr(u.LastRunError), time.Now().UTC(), id,
	)
	if err != nil {
		return storeErr("update workflow stats", err)
	}
	return checkRowsAffected(res, "workflow", id)
}

// --- Runs ---

func (s *LibSQLStore) CreateRun(ctx context.Context, run *schema.WorkflowRun) error {
	trigger, err := encodeValue(run.TriggerData)
	if err != nil {
		return fmt.Errorf("marshal trigger data: %w", err)
	}
	if run.TriggerData == nil {
		trigger = nil
	}
	output, err := encodeValue(run.Output)
	if err != nil {
		return fmt.Errorf("marshal run output: %w", err)
	}
	run.StartedAt = timeOrNow(run.StartedAt)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflow_runs (id, workflow_id, user_id, status, trigger_type, trigger_data, output, error, error_step,
		 started_at, completed_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, nullStr(run.WorkflowID), run.UserID, string(run.Status), run.TriggerType, nullRaw(trigger),
		nullRaw(output), nullStr(run.Error), nullStr(run.ErrorStep), run.StartedAt,
		nullTime(run.CompletedAt), nullInt(run.DurationMs),
	)
	if err != nil {
		return storeErr("insert run", err)
	}
	return nil
}

func (s *LibSQLStore) UpdateRun(ctx context.Context, id string, u RunUpdate) error {
	c := runUpdateClause(u, sqlitePlaceholder)
	if c.empty() {
		return nil
	}
	where := c.next(id)
	res, err := s.db.ExecContext(ctx, `UPDATE workflow_runs SET `+c.String()+` WHERE id = `+where, c.args...)
	if err != nil {
		return storeErr("update run", err)
	}
	return checkRowsAffected(res, "run", id)
}

const runColumns = `id, workflow_id, user_id, status, trigger_type, trigger_data, output, error, error_step,
	started_at, completed_at, duration_ms`

func scanRun(row rowScanner) (*schema.WorkflowRun, error) {
	run := &schema.WorkflowRun{}
	var (
		workflowID, trigger, output, runErr, errStep sql.NullString
		status                                       string
		completedAt                                  sql.NullTime
		duration                                     sql.NullInt64
	)
	if err := row.Scan(&run.ID, &workflowID, &run.UserID, &status, &run.TriggerType, &trigger, &output,
		&runErr, &errStep, &run.StartedAt, &completedAt, &duration); err != nil {
		return nil, err
	}
	run.WorkflowID = workflowID.String
	run.Status = schema.RunStatus(status)
	run.Error = runErr.String
	run.ErrorStep = errStep.String
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	if duration.Valid {
		d := duration.Int64
		run.DurationMs = &d
	}

	var err error
	if run.TriggerData, err = decodeMap(rawOrNil(trigger)); err != nil {
		return nil, fmt.Errorf("unmarshal run %s trigger data: %w", run.ID, err)
	}
	if run.Output, err = decodeValue(rawOrNil(output)); err != nil {
		return nil, fmt.Errorf("unmarshal run %s output: %w", run.ID, err)
	}
	return run, nil
}

func (s *LibSQLStore) GetRun(ctx context.Context, id string) (*schema.WorkflowRun, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM workflow_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("run", id)
	}
	if err != nil {
		return nil, storeErr("get run", err)
	}
	return run, nil
}

func (s *LibSQLStore) ListRuns(ctx context.Context, filter RunFilter) ([]*schema.WorkflowRun, error) {
	where, args := runFilterWhere(filter, sqlitePlaceholder)
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM workflow_runs`+where, args...)
	if err != nil {
		return nil, storeErr("list runs", err)
	}
	defer rows.Close()

	var out []*schema.WorkflowRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, storeErr("scan run", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// --- Run events ---

func (s *LibSQLStore) AppendRunEvent(ctx context.Context, ev *RunEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM run_events WHERE run_id = ?`, ev.RunID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}
	ev.Sequence = seq
	ev.Timestamp = timeOrNow(ev.Timestamp)

	err = tx.QueryRowContext(ctx,
		`INSERT INTO run_events (run_id, step_id, event_type, payload, timestamp, sequence)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		ev.RunID, nullStr(ev.StepID), ev.Type, nullRaw(ev.Payload), ev.Timestamp, seq,
	).Scan(&ev.ID)
	if err != nil {
		return storeErr("insert run event", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run event: %w", err)
	}
	return nil
}

func (s *LibSQLStore) ListRunEvents(ctx context.Context, runID string) ([]*RunEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, step_id, event_type, payload, timestamp, sequence
		 FROM run_events WHERE run_id = ? ORDER BY sequence ASC`, runID)
	if err != nil {
		return nil, storeErr("list run events", err)
	}
	defer rows.Close()

	var out []*RunEvent
	for rows.Next() {
		ev := &RunEvent{}
		var stepID, payload sql.NullString
		if err := rows.Scan(&ev.ID, &ev.RunID, &stepID, &ev.Type, &payload, &ev.Timestamp, &ev.Sequence); err != nil {
			return nil, storeErr("scan run event", err)
		}
		ev.StepID = stepID.String
		ev.Payload = rawOrNil(payload)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// --- Credentials ---

func (s *LibSQLStore) PutCredential(ctx context.Context, c *Credential) error {
	now := time.Now().UTC()
	c.CreatedAt = timeOrNow(c.CreatedAt)
	c.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_credentials (user_id, platform, ciphertext, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, platform) DO UPDATE SET ciphertext = excluded.ciphertext, updated_at = excluded.updated_at`,
		c.UserID, c.Platform, c.Ciphertext, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return storeErr("put credential", err)
	}
	return nil
}

func (s *LibSQLStore) ListCredentials(ctx context.Context, userID string) ([]*Credential, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, platform, ciphertext, created_at, updated_at
		 FROM user_credentials WHERE user_id = ? ORDER BY platform ASC`, userID)
	if err != nil {
		return nil, storeErr("list credentials", err)
	}
	defer rows.Close()

	var out []*Credential
	for rows.Next() {
		c := &Credential{}
		if err := rows.Scan(&c.UserID, &c.Platform, &c.Ciphertext, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, storeErr("scan credential", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *LibSQLStore) DeleteCredential(ctx context.Context, userID, platform string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_credentials WHERE user_id = ? AND platform = ?`, userID, platform)
	if err != nil {
		return storeErr("delete credential", err)
	}
	return checkRowsAffected(res, "credential", userID+"/"+platform)
}
