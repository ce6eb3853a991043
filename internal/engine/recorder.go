package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"time"

	"github.com/seanmmay/b0t-sub000/internal/expressions"
	"github.com/seanmmay/b0t-sub000/internal/logging"
	"github.com/seanmmay/b0t-sub000/internal/store"
	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

// ValidRunTransitions lists the allowed run status changes. A run is
// created running and finishes exactly once.
var ValidRunTransitions = map[schema.RunStatus][]schema.RunStatus{
	schema.RunStatusRunning: {schema.RunStatusSuccess, schema.RunStatusError},
}

func isValidRunTransition(from, to schema.RunStatus) bool {
	return slices.Contains(ValidRunTransitions[from], to)
}

func runEventType(to schema.RunStatus) string {
	switch to {
	case schema.RunStatusRunning:
		return schema.EventRunStarted
	case schema.RunStatusSuccess:
		return schema.EventRunCompleted
	case schema.RunStatusError:
		return schema.EventRunFailed
	default:
		return ""
	}
}

// runRecorder persists the lifecycle of one run and the workflow's
// statistics. Only start failures are reported; everything after the run
// record exists is logged, since the outcome is already decided.
type runRecorder struct {
	store  store.WorkflowStore
	events store.RunEventLog
	logger *slog.Logger
	now    func() time.Time
}

// start inserts run with status running.
func (r *runRecorder) start(ctx context.Context, run *schema.WorkflowRun) error {
	run.Status = schema.RunStatusRunning
	if err := r.store.CreateRun(ctx, run); err != nil {
		return err
	}
	r.event(ctx, run.ID, schema.EventRunStarted, map[string]any{"trigger_type": run.TriggerType})
	return nil
}

// finish moves run to its terminal status and persists the outcome.
func (r *runRecorder) finish(ctx context.Context, run *schema.WorkflowRun, output any, runErr error) {
	log := logging.LogWith(ctx, r.logger)

	to := schema.RunStatusSuccess
	if runErr != nil {
		to = schema.RunStatusError
	}
	if !isValidRunTransition(run.Status, to) {
		log.Error("invalid run transition", "from", run.Status, "to", to)
		return
	}

	completed := r.now()
	duration := completed.Sub(run.StartedAt).Milliseconds()
	run.Status = to
	run.CompletedAt = &completed
	run.DurationMs = &duration

	update := store.RunUpdate{Status: &to, CompletedAt: &completed, DurationMs: &duration}
	if runErr != nil {
		run.Error, run.ErrorStep = errorParts(runErr)
		update.Error = &run.Error
		update.ErrorStep = &run.ErrorStep
	} else {
		run.Output = output
		update.Output = encodeOutput(output, log)
	}

	if err := r.store.UpdateRun(ctx, run.ID, update); err != nil {
		log.Error("run outcome not persisted", "status", to, "error", err)
	}

	payload := map[string]any{"duration_ms": duration}
	if runErr != nil {
		payload["error"] = run.Error
	}
	r.event(ctx, run.ID, runEventType(to), payload)
}

// stats increments the workflow's run count and records the last outcome.
func (r *runRecorder) stats(ctx context.Context, workflowID string, run *schema.WorkflowRun) {
	u := store.WorkflowStatsUpdate{LastRunStatus: run.Status, LastRunError: run.Error}
	if run.CompletedAt != nil {
		u.LastRun = *run.CompletedAt
	}
	if err := r.store.UpdateWorkflowStats(ctx, workflowID, u); err != nil {
		logging.LogWith(ctx, r.logger).Error("workflow stats not updated", "error", err)
	}
}

func (r *runRecorder) event(ctx context.Context, runID, typ string, payload map[string]any) {
	if r.events == nil {
		return
	}
	appendEvent(ctx, r.events, r.logger, runID, "", typ, payload)
}

// encodeOutput serializes a run output for storage. Values JSON cannot
// represent are stored in their string form.
func encodeOutput(output any, log *slog.Logger) json.RawMessage {
	if output == nil {
		return nil
	}
	raw, err := json.Marshal(output)
	if err != nil {
		log.Warn("run output not JSON-serializable, storing string form", "error", err)
		raw, _ = json.Marshal(expressions.Stringify(output))
	}
	return raw
}

// errorParts splits a run failure into the message and failing step id.
func errorParts(err error) (msg, stepID string) {
	if ee, ok := schema.AsEngineError(err); ok {
		return ee.Message, ee.StepID
	}
	return err.Error(), ""
}
