package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

func newTestStore(t *testing.T) *LibSQLStore {
	t.Helper()
	dbPath := "file:" + filepath.Join(t.TempDir(), "test.db")
	s, err := NewLibSQLStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLibSQLStore_Contract(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store { return newTestStore(t) })
}

func TestLibSQLStore_MigrateIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))

	var version int
	require.NoError(t, s.db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version))
	assert.Equal(t, 1, version)
}

func TestLibSQLStore_CompletedAtRequiresTerminalStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateRun(ctx, &schema.WorkflowRun{
		ID: "r1", UserID: "u", Status: schema.RunStatusRunning, TriggerType: schema.TriggerManual,
	}))

	status := schema.RunStatusSuccess
	err := s.UpdateRun(ctx, "r1", RunUpdate{Status: &status})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeStore))
}

func TestLoadMigrations(t *testing.T) {
	for _, dialect := range []string{"sqlite", "postgres"} {
		ms, err := loadMigrations(dialect)
		require.NoError(t, err, dialect)
		require.NotEmpty(t, ms, dialect)
		assert.Equal(t, 1, ms[0].Version)
		assert.Equal(t, "initial_schema", ms[0].Name)
		assert.NotEmpty(t, splitStatements(ms[0].SQL))
	}
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("-- header\nCREATE TABLE a (x INT);\n\n-- only a comment\n;SELECT 1;")
	assert.Equal(t, []string{"-- header\nCREATE TABLE a (x INT)", "SELECT 1"}, stmts)
}

func TestRunFilterWhere(t *testing.T) {
	status := schema.RunStatusError
	q, args := runFilterWhere(RunFilter{WorkflowID: "wf", Status: &status, Limit: 5}, postgresPlaceholder)
	assert.Equal(t, " WHERE workflow_id = $1 AND status = $2 ORDER BY started_at DESC LIMIT $3", q)
	assert.Equal(t, []any{"wf", "error", 5}, args)

	q, args = runFilterWhere(RunFilter{}, sqlitePlaceholder)
	assert.Equal(t, " ORDER BY started_at DESC", q)
	assert.Empty(t, args)
}
