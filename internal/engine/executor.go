package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/seanmmay/b0t-sub000/internal/logging"
	"github.com/seanmmay/b0t-sub000/internal/store"
	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

// CredentialSource supplies decrypted per-platform secrets for a user.
// It must not fail; missing credentials are an empty map.
// Satisfied by *secrets.CredentialLoader.
type CredentialSource interface {
	LoadUserCredentials(ctx context.Context, userID string) map[string]any
}

// ConfigValidator checks an inline step tree before it runs.
// Satisfied by *validation.WorkflowValidator.
type ConfigValidator interface {
	ValidateConfig(cfg *schema.WorkflowConfig) error
}

type noCredentials struct{}

func (noCredentials) LoadUserCredentials(context.Context, string) map[string]any {
	return map[string]any{}
}

// Executor runs workflows end to end: precondition checks, run recording,
// credential loading and interpretation. Its entry points never return a Go
// error; every failure is carried in the ExecutionResult.
type Executor struct {
	store       store.WorkflowStore
	events      store.RunEventLog
	credentials CredentialSource
	interp      *Interpreter
	recorder    *runRecorder
	logger      *slog.Logger
	tel         *telemetry
	now         func() time.Time
	newID       func() string
}

// Option configures an Executor.
type Option func(*Executor)

// WithEventLog records run and step events for persisted runs.
func WithEventLog(l store.RunEventLog) Option {
	return func(e *Executor) { e.events = l }
}

// WithCredentials sets the credential source merged under "user".
func WithCredentials(c CredentialSource) Option {
	return func(e *Executor) { e.credentials = c }
}

// WithLogger sets the executor's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithTelemetry overrides the global otel tracer and meter providers.
func WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) Option {
	return func(e *Executor) { e.tel = newTelemetry(tp, mp) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithIDGenerator replaces the run id generator (random UUIDs by default).
func WithIDGenerator(gen func() string) Option {
	return func(e *Executor) { e.newID = gen }
}

// NewExecutor creates an Executor over s that dispatches through d.
func NewExecutor(s store.WorkflowStore, d Dispatcher, opts ...Option) *Executor {
	e := &Executor{
		store:       s,
		credentials: noCredentials{},
		logger:      slog.Default(),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
	for _, o := range opts {
		o(e)
	}
	if e.tel == nil {
		e.tel = newTelemetry(nil, nil)
	}
	e.interp = NewInterpreter(d, e.events, e.logger)
	e.interp.tel = e.tel
	e.recorder = &runRecorder{store: s, events: e.events, logger: e.logger, now: e.now}
	return e
}

// RunOption configures a single ExecuteWorkflowConfig call.
type RunOption func(*runOptions)

type runOptions struct {
	persist     bool
	validator   ConfigValidator
	triggerType string
}

// Persist records the inline run in the store (off by default).
func Persist(enabled bool) RunOption {
	return func(o *runOptions) { o.persist = enabled }
}

// Validate checks the config with v before anything runs.
func Validate(v ConfigValidator) RunOption {
	return func(o *runOptions) { o.validator = v }
}

// TriggerType overrides the recorded trigger type (dry-run by default).
func TriggerType(t string) RunOption {
	return func(o *runOptions) { o.triggerType = t }
}

// ExecuteWorkflow runs the persisted workflow workflowID on behalf of userID.
//
// A missing workflow or an inactive organization fails before any run record
// is created. Otherwise a running record is created before the first step,
// finished exactly once, and the workflow's statistics are updated.
func (e *Executor) ExecuteWorkflow(ctx context.Context, workflowID, userID, triggerType string, triggerData map[string]any) schema.ExecutionResult {
	ctx = logging.WithUserID(logging.WithWorkflowID(ctx, workflowID), userID)
	log := logging.LogWith(ctx, e.logger)

	wf, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		if schema.IsCode(err, schema.ErrCodeNotFound) {
			err = schema.NewErrorf(schema.ErrCodeWorkflowNotFound, "workflow %s not found", workflowID).WithCause(err)
		}
		log.Warn("workflow not runnable", "error", err)
		return failure(err)
	}

	if wf.OrganizationID != "" {
		org, err := e.store.GetOrganization(ctx, wf.OrganizationID)
		switch {
		case schema.IsCode(err, schema.ErrCodeNotFound):
			log.Warn("workflow organization missing, running unscoped", "organization_id", wf.OrganizationID)
		case err != nil:
			log.Error("organization lookup failed", "error", err)
			return failure(err)
		case !org.Active():
			err := schema.NewErrorf(schema.ErrCodeOrganizationInactive,
				"organization %s is %s", org.ID, org.Status).
				WithDetails(map[string]any{"organization_id": org.ID})
			log.Warn("workflow not runnable", "error", err)
			return failure(err)
		}
	}

	if triggerType == "" {
		triggerType = schema.TriggerManual
	}
	return e.execute(ctx, wf.ID, userID, triggerType, triggerData, wf.Config.Steps, true, true)
}

// ExecuteWorkflowConfig runs an inline step tree through the same
// interpreter and dispatcher as ExecuteWorkflow. Nothing is persisted unless
// Persist(true) is given; workflow statistics are never touched.
func (e *Executor) ExecuteWorkflowConfig(ctx context.Context, cfg schema.WorkflowConfig, userID string, triggerData map[string]any, opts ...RunOption) schema.ExecutionResult {
	o := runOptions{triggerType: schema.TriggerDryRun}
	for _, opt := range opts {
		opt(&o)
	}
	ctx = logging.WithUserID(ctx, userID)

	if o.validator != nil {
		if err := o.validator.ValidateConfig(&cfg); err != nil {
			logging.LogWith(ctx, e.logger).Warn("workflow config rejected", "error", err)
			return failure(err)
		}
	}
	return e.execute(ctx, "", userID, o.triggerType, triggerData, cfg.Steps, o.persist, false)
}

func (e *Executor) execute(ctx context.Context, workflowID, userID, triggerType string, triggerData map[string]any,
	steps []schema.Step, persist, updateStats bool) schema.ExecutionResult {

	run := &schema.WorkflowRun{
		ID:          e.newID(),
		WorkflowID:  workflowID,
		UserID:      userID,
		Status:      schema.RunStatusRunning,
		TriggerType: triggerType,
		TriggerData: triggerData,
		StartedAt:   e.now(),
	}
	ctx = logging.WithRun(ctx, workflowID, run.ID, userID)
	log := logging.LogWith(ctx, e.logger)

	ctx, span := e.tel.startRun(ctx, workflowID, userID, triggerType)

	if persist {
		if err := e.recorder.start(ctx, run); err != nil {
			log.Error("run record not created", "error", err)
			e.tel.endRun(ctx, span, run.ID, string(schema.RunStatusError), 0, err)
			return failure(err)
		}
	}
	log.Info("run started", "trigger_type", triggerType, "persisted", persist)

	creds := e.credentials.LoadUserCredentials(ctx, userID)
	ec := NewExecutionContext(workflowID, run.ID, userID, creds, triggerData)
	ec.persisted = persist

	output, runErr := e.interp.Run(ctx, ec, steps)

	if persist {
		// The outcome is recorded even when ctx expired mid-run.
		rctx := context.WithoutCancel(ctx)
		e.recorder.finish(rctx, run, output, runErr)
		if updateStats {
			e.recorder.stats(rctx, workflowID, run)
		}
	} else {
		status := schema.RunStatusSuccess
		if runErr != nil {
			status = schema.RunStatusError
		}
		run.Status = status
	}
	elapsed := e.now().Sub(run.StartedAt)
	e.tel.endRun(ctx, span, run.ID, string(run.Status), elapsed, runErr)

	if runErr != nil {
		res := failure(runErr)
		res.RunID = run.ID
		log.Error("run failed", "error_step", res.ErrorStep, "error", res.Error, "actions", ec.ActionsExecuted())
		return res
	}
	log.Info("run succeeded", "actions", ec.ActionsExecuted(), "duration_ms", elapsed.Milliseconds())
	return schema.ExecutionResult{Success: true, Output: output, RunID: run.ID}
}

func failure(err error) schema.ExecutionResult {
	msg, step := errorParts(err)
	return schema.ExecutionResult{Success: false, Error: msg, ErrorStep: step}
}
