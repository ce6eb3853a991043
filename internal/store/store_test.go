package store

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

// testStoreContract runs the behavior every Store implementation must share.
func testStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("OrganizationLifecycle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.CreateOrganization(ctx, &Organization{ID: "org-1", Name: "Acme"}))
		org, err := s.GetOrganization(ctx, "org-1")
		require.NoError(t, err)
		assert.True(t, org.Active())

		require.NoError(t, s.SetOrganizationStatus(ctx, "org-1", OrganizationStatusInactive))
		org, err = s.GetOrganization(ctx, "org-1")
		require.NoError(t, err)
		assert.False(t, org.Active())

		_, err = s.GetOrganization(ctx, "missing")
		assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
	})

	t.Run("WorkflowRoundTrip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		wf := sampleWorkflow("wf-1", "user-1")
		require.NoError(t, s.CreateWorkflow(ctx, wf))

		got, err := s.GetWorkflow(ctx, "wf-1")
		require.NoError(t, err)
		assert.Equal(t, "user-1", got.UserID)
		assert.Equal(t, WorkflowStatusActive, got.Status)
		assert.Zero(t, got.RunCount)
		assert.Nil(t, got.LastRun)
		require.Len(t, got.Config.Steps, 2)
		assert.Equal(t, "utilities.datetime.now", got.Config.Steps[0].Action.Module)
		assert.Equal(t, "ts", got.Config.Steps[0].Action.OutputAs)
		assert.JSONEq(t, `{"type":"manual"}`, string(got.Trigger))

		_, err = s.GetWorkflow(ctx, "nope")
		assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))

		require.NoError(t, s.CreateWorkflow(ctx, sampleWorkflow("wf-2", "user-2")))
		list, err := s.ListWorkflows(ctx, "user-2")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "wf-2", list[0].ID)
	})

	t.Run("RunRoundTrip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.CreateWorkflow(ctx, sampleWorkflow("wf-1", "user-1")))

		started := time.Now().UTC().Truncate(time.Millisecond)
		run := &schema.WorkflowRun{
			ID:          uuid.NewString(),
			WorkflowID:  "wf-1",
			UserID:      "user-1",
			Status:      schema.RunStatusRunning,
			TriggerType: schema.TriggerManual,
			TriggerData: map[string]any{"source": "test"},
			StartedAt:   started,
		}
		require.NoError(t, s.CreateRun(ctx, run))

		pending, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, schema.RunStatusRunning, pending.Status)
		assert.Nil(t, pending.CompletedAt)
		assert.Nil(t, pending.DurationMs)
		assert.Equal(t, map[string]any{"source": "test"}, pending.TriggerData)

		output := map[string]any{"msg": "hi", "n": 3.0, "list": []any{1.0, "x"}}
		raw, err := json.Marshal(output)
		require.NoError(t, err)
		status := schema.RunStatusSuccess
		completed := started.Add(1500 * time.Millisecond)
		duration := int64(1500)
		require.NoError(t, s.UpdateRun(ctx, run.ID, RunUpdate{
			Status:      &status,
			Output:      raw,
			CompletedAt: &completed,
			DurationMs:  &duration,
		}))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, schema.RunStatusSuccess, got.Status)
		assert.Equal(t, output, got.Output)
		require.NotNil(t, got.CompletedAt)
		assert.True(t, got.CompletedAt.After(got.StartedAt))
		assert.WithinDuration(t, started, got.StartedAt, time.Second)
		require.NotNil(t, got.DurationMs)
		assert.Equal(t, int64(1500), *got.DurationMs)
		assert.Empty(t, got.Error)

		err = s.UpdateRun(ctx, "missing", RunUpdate{Status: &status, CompletedAt: &completed})
		assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
	})

	t.Run("RunErrorAndFilter", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		base := time.Now().UTC().Truncate(time.Millisecond)
		for i, id := range []string{"r1", "r2", "r3"} {
			require.NoError(t, s.CreateRun(ctx, &schema.WorkflowRun{
				ID:          id,
				UserID:      "user-1",
				Status:      schema.RunStatusRunning,
				TriggerType: schema.TriggerManual,
				StartedAt:   base.Add(time.Duration(i) * time.Second),
			}))
		}

		status := schema.RunStatusError
		msg := "module utilities.math.divide failed: division by zero"
		step := "s3"
		done := base.Add(5 * time.Second)
		require.NoError(t, s.UpdateRun(ctx, "r2", RunUpdate{
			Status: &status, Error: &msg, ErrorStep: &step, CompletedAt: &done,
		}))

		got, err := s.GetRun(ctx, "r2")
		require.NoError(t, err)
		assert.Equal(t, msg, got.Error)
		assert.Equal(t, "s3", got.ErrorStep)
		assert.Nil(t, got.Output)
		assert.Empty(t, got.WorkflowID)

		all, err := s.ListRuns(ctx, RunFilter{UserID: "user-1"})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "r3", all[0].ID, "newest first")

		failed, err := s.ListRuns(ctx, RunFilter{Status: &status})
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, "r2", failed[0].ID)

		limited, err := s.ListRuns(ctx, RunFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})

	t.Run("WorkflowStats", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.CreateWorkflow(ctx, sampleWorkflow("wf-1", "user-1")))

		at := time.Now().UTC().Truncate(time.Millisecond)
		require.NoError(t, s.UpdateWorkflowStats(ctx, "wf-1", WorkflowStatsUpdate{
			LastRun: at, LastRunStatus: schema.RunStatusError, LastRunError: "boom",
		}))
		require.NoError(t, s.UpdateWorkflowStats(ctx, "wf-1", WorkflowStatsUpdate{
			LastRun: at.Add(time.Second), LastRunStatus: schema.RunStatusSuccess,
		}))

		wf, err := s.GetWorkflow(ctx, "wf-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), wf.RunCount)
		assert.Equal(t, schema.RunStatusSuccess, wf.LastRunStatus)
		assert.Empty(t, wf.LastRunError, "success clears the last error")
		require.NotNil(t, wf.LastRun)
		assert.WithinDuration(t, at.Add(time.Second), *wf.LastRun, time.Second)

		err = s.UpdateWorkflowStats(ctx, "missing", WorkflowStatsUpdate{LastRunStatus: schema.RunStatusSuccess})
		assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
	})

	t.Run("WorkflowStatsConcurrent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.CreateWorkflow(ctx, sampleWorkflow("wf-1", "user-1")))

		const n = 10
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- s.UpdateWorkflowStats(ctx, "wf-1", WorkflowStatsUpdate{LastRunStatus: schema.RunStatusSuccess})
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		wf, err := s.GetWorkflow(ctx, "wf-1")
		require.NoError(t, err)
		assert.Equal(t, int64(n), wf.RunCount)
	})

	t.Run("RunEvents", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.CreateRun(ctx, &schema.WorkflowRun{
			ID: "run-1", UserID: "u", Status: schema.RunStatusRunning, TriggerType: schema.TriggerManual,
		}))

		for _, typ := range []string{schema.EventRunStarted, schema.EventStepStarted, schema.EventStepCompleted} {
			ev := &RunEvent{RunID: "run-1", StepID: "s1", Type: typ, Payload: json.RawMessage(`{"k":1}`)}
			require.NoError(t, s.AppendRunEvent(ctx, ev))
			assert.NotZero(t, ev.ID)
		}

		events, err := s.ListRunEvents(ctx, "run-1")
		require.NoError(t, err)
		require.Len(t, events, 3)
		for i, ev := range events {
			assert.Equal(t, int64(i+1), ev.Sequence)
		}
		assert.Equal(t, schema.EventRunStarted, events[0].Type)
		assert.JSONEq(t, `{"k":1}`, string(events[2].Payload))

		empty, err := s.ListRunEvents(ctx, "other")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("Credentials", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.PutCredential(ctx, &Credential{UserID: "u1", Platform: "slack", Ciphertext: []byte{1, 2}}))
		require.NoError(t, s.PutCredential(ctx, &Credential{UserID: "u1", Platform: "github", Ciphertext: []byte{3}}))
		require.NoError(t, s.PutCredential(ctx, &Credential{UserID: "u1", Platform: "slack", Ciphertext: []byte{9}}))
		require.NoError(t, s.PutCredential(ctx, &Credential{UserID: "u2", Platform: "slack", Ciphertext: []byte{7}}))

		creds, err := s.ListCredentials(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, creds, 2)
		assert.Equal(t, "github", creds[0].Platform)
		assert.Equal(t, "slack", creds[1].Platform)
		assert.Equal(t, []byte{9}, creds[1].Ciphertext, "upsert replaces ciphertext")

		require.NoError(t, s.DeleteCredential(ctx, "u1", "slack"))
		err = s.DeleteCredential(ctx, "u1", "slack")
		assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))

		creds, err = s.ListCredentials(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, creds, 1)
	})
}

func sampleWorkflow(id, userID string) *Workflow {
	return &Workflow{
		ID:      id,
		UserID:  userID,
		Name:    "timestamp",
		Trigger: json.RawMessage(`{"type":"manual"}`),
		Config: schema.WorkflowConfig{Steps: []schema.Step{
			schema.NewActionStep("s1", "utilities.datetime.now", nil, "ts"),
			schema.NewActionStep("s2", "utilities.string-utils.capitalize", map[string]any{"str": "{{ts}}"}, ""),
		}},
	}
}
