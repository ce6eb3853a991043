package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

func storeNotFound(resource, id string) *schema.EngineError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func storeErr(op string, err error) *schema.EngineError {
	return schema.NewErrorf(schema.ErrCodeStore, "%s: %s", op, err.Error()).WithCause(err)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullInt(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

// encodeValue marshals an arbitrary run value. nil stays SQL NULL.
func encodeValue(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// decodeValue is the inverse of encodeValue.
func decodeValue(raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeMap(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func encodeConfig(cfg schema.WorkflowConfig) (string, error) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal workflow config: %w", err)
	}
	return string(b), nil
}

func decodeConfig(raw []byte, wf *Workflow) error {
	if err := json.Unmarshal(raw, &wf.Config); err != nil {
		return fmt.Errorf("unmarshal workflow %s config: %w", wf.ID, err)
	}
	return nil
}

// setClause accumulates "col = <placeholder>" pairs for a partial UPDATE.
// placeholder renders the n-th (1-based) bind parameter for the dialect.
type setClause struct {
	sets        []string
	args        []any
	placeholder func(n int) string
}

func newSetClause(placeholder func(n int) string) *setClause {
	return &setClause{placeholder: placeholder}
}

func (c *setClause) add(col string, v any) {
	c.args = append(c.args, v)
	c.sets = append(c.sets, col+" = "+c.placeholder(len(c.args)))
}

// next reserves a placeholder for a WHERE argument.
func (c *setClause) next(v any) string {
	c.args = append(c.args, v)
	return c.placeholder(len(c.args))
}

func (c *setClause) empty() bool { return len(c.sets) == 0 }

func (c *setClause) String() string { return strings.Join(c.sets, ", ") }

func sqlitePlaceholder(int) string { return "?" }

func postgresPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

// runUpdateClause renders a RunUpdate. Output is stored as JSON text; the
// postgres caller casts it.
func runUpdateClause(u RunUpdate, placeholder func(int) string) *setClause {
	c := newSetClause(placeholder)
	if u.Status != nil {
		c.add("status", string(*u.Status))
	}
	if u.Output != nil {
		c.add("output", nullRaw(u.Output))
	}
	if u.Error != nil {
		c.add("error", nullStr(*u.Error))
	}
	if u.ErrorStep != nil {
		c.add("error_step", nullStr(*u.ErrorStep))
	}
	if u.CompletedAt != nil {
		c.add("completed_at", *u.CompletedAt)
	}
	if u.DurationMs != nil {
		c.add("duration_ms", *u.DurationMs)
	}
	return c
}

// runFilterWhere renders a RunFilter into a WHERE clause and LIMIT.
func runFilterWhere(f RunFilter, placeholder func(int) string) (string, []any) {
	c := newSetClause(placeholder)
	var where []string
	if f.WorkflowID != "" {
		where = append(where, "workflow_id = "+c.next(f.WorkflowID))
	}
	if f.UserID != "" {
		where = append(where, "user_id = "+c.next(f.UserID))
	}
	if f.Status != nil {
		where = append(where, "status = "+c.next(string(*f.Status)))
	}
	q := ""
	if len(where) > 0 {
		q = " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY started_at DESC"
	if f.Limit > 0 {
		q += " LIMIT " + c.next(f.Limit)
	}
	return q, c.args
}
