package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

// PostgresStore implements Store on PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to the database at dsn and verifies the connection.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Migrate applies pending postgres migrations, one transaction per version.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	migrations, err := loadMigrations("postgres")
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var current int
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			for _, stmt := range splitStatements(m.SQL) {
				if _, err := tx.Exec(ctx, stmt); err != nil {
					return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
				}
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_version (version, name) VALUES ($1, $2)`, m.Version, m.Name)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func pgRowsAffected(tag pgconn.CommandTag, resource, id string) error {
	if tag.RowsAffected() == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

// --- Organizations ---

func (s *PostgresStore) CreateOrganization(ctx context.Context, org *Organization) error {
	if org.Status == "" {
		org.Status = OrganizationStatusActive
	}
	org.CreatedAt = timeOrNow(org.CreatedAt)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO organizations (id, name, status, created_at) VALUES ($1, $2, $3, $4)`,
		org.ID, org.Name, org.Status, org.CreatedAt,
	)
	if err != nil {
		return storeErr("insert organization", err)
	}
	return nil
}

func (s *PostgresStore) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	org := &Organization{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, status, created_at FROM organizations WHERE id = $1`, id,
	).Scan(&org.ID, &org.Name, &org.Status, &org.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storeNotFound("organization", id)
	}
	if err != nil {
		return nil, storeErr("get organization", err)
	}
	return org, nil
}

func (s *PostgresStore) SetOrganizationStatus(ctx context.Context, id, status string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE organizations SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return storeErr("update organization", err)
	}
	return pgRowsAffected(tag, "organization", id)
}

// --- Workflows ---

func (s *PostgresStore) CreateWorkflow(ctx context.Context, wf *Workflow) error {
	cfg, err := encodeConfig(wf.Config)
	if err != nil {
		return err
	}
	if wf.Status == "" {
		wf.Status = WorkflowStatusActive
	}
	wf.CreatedAt = timeOrNow(wf.CreatedAt)
	wf.UpdatedAt = wf.CreatedAt
	_, err = s.pool.Exec(ctx,
		`INSERT INTO workflows (id, user_id, organization_id, name, config, trigger_config, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		wf.ID, wf.UserID, nullStr(wf.OrganizationID), wf.Name, cfg, nullRaw(wf.Trigger), wf.Status,
		wf.CreatedAt, wf.UpdatedAt,
	)
	if err != nil {
		return storeErr("insert workflow", err)
	}
	return nil
}

func scanPgWorkflow(row pgx.Row) (*Workflow, error) {
	wf := &Workflow{}
	var (
		orgID, lastStatus, lastErr *string
		cfg, trigger               []byte
	)
	if err := row.Scan(&wf.ID, &wf.UserID, &orgID, &wf.Name, &cfg, &trigger, &wf.Status, &wf.RunCount,
		&wf.LastRun, &lastStatus, &lastErr, &wf.CreatedAt, &wf.UpdatedAt); err != nil {
		return nil, err
	}
	wf.OrganizationID = deref(orgID)
	wf.LastRunStatus = schema.RunStatus(deref(lastStatus))
	wf.LastRunError = deref(lastErr)
	if len(trigger) > 0 {
		wf.Trigger = trigger
	}
	if err := decodeConfig(cfg, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

func (s *PostgresStore) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	wf, err := scanPgWorkflow(s.pool.QueryRow(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storeNotFound("workflow", id)
	}
	if err != nil {
		return nil, storeErr("get workflow", err)
	}
	return wf, nil
}

func (s *PostgresStore) ListWorkflows(ctx context.Context, userID string) ([]*Workflow, error) {
	q := `SELECT ` + workflowColumns + ` FROM workflows`
	var args []any
	if userID != "" {
		q += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	q += ` ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, storeErr("list workflows", err)
	}
	defer rows.Close()

	var out []*Workflow
	for rows.Next() {
		wf, err := scanPgWorkflow(rows)
		if err != nil {
			return nil, storeErr("scan workflow", err)
		}
		out = append(out, wf)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateWorkflowStats(ctx context.Context, id string, u WorkflowStatsUpdate) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE workflows SET run_count = run_count + 1, last_run = $1, last_run_status = $2, last_run_error = $3, updated_at = $4
		 WHERE id = $5`,
		timeOrNow(u.LastRun), string(u.LastRunStatus), nullStr(u.LastRunError), time.Now().UTC(), id,
	)
	if err != nil {
		return storeErr("update workflow stats", err)
	}
	return pgRowsAffected(tag, "workflow", id)
}

// --- Runs ---

func (s *PostgresStore) CreateRun(ctx context.Context, run *schema.WorkflowRun) error {
	var trigger []byte
	if run.TriggerData != nil {
		var err error
		if trigger, err = encodeValue(run.TriggerData); err != nil {
			return fmt.Errorf("marshal trigger data: %w", err)
		}
	}
	output, err := encodeValue(run.Output)
	if err != nil {
		return fmt.Errorf("marshal run output: %w", err)
	}
	run.StartedAt = timeOrNow(run.StartedAt)
	_, err = s.pool.Exec(ctx,
		`INSERT INTO workflow_runs (id, workflow_id, user_id, status, trigger_type, trigger_data, output, error, error_step,
		 started_at, completed_at, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		run.ID, nullStr(run.WorkflowID), run.UserID, string(run.Status), run.TriggerType, nullRaw(trigger),
		nullRaw(output), nullStr(run.Error), nullStr(run.ErrorStep), run.StartedAt,
		nullTime(run.CompletedAt), nullInt(run.DurationMs),
	)
	if err != nil {
		return storeErr("insert run", err)
	}
	return nil
}

func (s *PostgresStore) UpdateRun(ctx context.Context, id string, u RunUpdate) error {
	c := runUpdateClause(u, postgresPlaceholder)
	if c.empty() {
		return nil
	}
	where := c.next(id)
	tag, err := s.pool.Exec(ctx, `UPDATE workflow_runs SET `+c.String()+` WHERE id = `+where, c.args...)
	if err != nil {
		return storeErr("update run", err)
	}
	return pgRowsAffected(tag, "run", id)
}

func scanPgRun(row pgx.Row) (*schema.WorkflowRun, error) {
	run := &schema.WorkflowRun{}
	var (
		workflowID, runErr, errStep *string
		trigger, output             []byte
		status                      string
	)
	if err := row.Scan(&run.ID, &workflowID, &run.UserID, &status, &run.TriggerType, &trigger, &output,
		&runErr, &errStep, &run.StartedAt, &run.CompletedAt, &run.DurationMs); err != nil {
		return nil, err
	}
	run.WorkflowID = deref(workflowID)
	run.Status = schema.RunStatus(status)
	run.Error = deref(runErr)
	run.ErrorStep = deref(errStep)

	var err error
	if run.TriggerData, err = decodeMap(trigger); err != nil {
		return nil, fmt.Errorf("unmarshal run %s trigger data: %w", run.ID, err)
	}
	if run.Output, err = decodeValue(output); err != nil {
		return nil, fmt.Errorf("unmarshal run %s output: %w", run.ID, err)
	}
	return run, nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*schema.WorkflowRun, error) {
	run, err := scanPgRun(s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM workflow_runs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storeNotFound("run", id)
	}
	if err != nil {
		return nil, storeErr("get run", err)
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]*schema.WorkflowRun, error) {
	where, args := runFilterWhere(filter, postgresPlaceholder)
	rows, err := s.pool.Query(ctx, `SELECT `+runColumns+` FROM workflow_runs`+where, args...)
	if err != nil {
		return nil, storeErr("list runs", err)
	}
	defer rows.Close()

	var out []*schema.WorkflowRun
	for rows.Next() {
		run, err := scanPgRun(rows)
		if err != nil {
			return nil, storeErr("scan run", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// --- Run events ---

// AppendRunEvent serializes appends per run with a transaction-scoped
// advisory lock so concurrent writers cannot reuse a sequence number.
func (s *PostgresStore) AppendRunEvent(ctx context.Context, ev *RunEvent) error {
	ev.Timestamp = timeOrNow(ev.Timestamp)
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ev.RunID); err != nil {
			return fmt.Errorf("lock run events: %w", err)
		}
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(sequence), 0) + 1 FROM run_events WHERE run_id = $1`, ev.RunID,
		).Scan(&ev.Sequence); err != nil {
			return fmt.Errorf("get next sequence: %w", err)
		}
		return tx.QueryRow(ctx,
			`INSERT INTO run_events (run_id, step_id, event_type, payload, timestamp, sequence)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			ev.RunID, nullStr(ev.StepID), ev.Type, nullRaw(ev.Payload), ev.Timestamp, ev.Sequence,
		).Scan(&ev.ID)
	})
	if err != nil {
		return storeErr("append run event", err)
	}
	return nil
}

func (s *PostgresStore) ListRunEvents(ctx context.Context, runID string) ([]*RunEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, step_id, event_type, payload, timestamp, sequence
		 FROM run_events WHERE run_id = $1 ORDER BY sequence ASC`, runID)
	if err != nil {
		return nil, storeErr("list run events", err)
	}
	defer rows.Close()

	var out []*RunEvent
	for rows.Next() {
		ev := &RunEvent{}
		var stepID *string
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.RunID, &stepID, &ev.Type, &payload, &ev.Timestamp, &ev.Sequence); err != nil {
			return nil, storeErr("scan run event", err)
		}
		ev.StepID = deref(stepID)
		if len(payload) > 0 {
			ev.Payload = payload
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// --- Credentials ---

func (s *PostgresStore) PutCredential(ctx context.Context, c *Credential) error {
	c.CreatedAt = timeOrNow(c.CreatedAt)
	c.UpdatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_credentials (user_id, platform, ciphertext, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, platform) DO UPDATE SET ciphertext = EXCLUDED.ciphertext, updated_at = EXCLUDED.updated_at`,
		c.UserID, c.Platform, c.Ciphertext, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return storeErr("put credential", err)
	}
	return nil
}

func (s *PostgresStore) ListCredentials(ctx context.Context, userID string) ([]*Credential, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, platform, ciphertext, created_at, updated_at
		 FROM user_credentials WHERE user_id = $1 ORDER BY platform ASC`, userID)
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

func (s *PostgresStore) DeleteCredential(ctx context.Context, userID, platform string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM user_credentials WHERE user_id = $1 AND platform = $2`, userID, platform)
	if err != nil {
		return storeErr("delete credential", err)
	}
	return pgRowsAffected(tag, "credential", userID+"/"+platform)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
