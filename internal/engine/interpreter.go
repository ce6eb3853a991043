package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"reflect"

	"github.com/seanmmay/b0t-sub000/internal/expressions"
	"github.com/seanmmay/b0t-sub000/internal/logging"
	"github.com/seanmmay/b0t-sub000/internal/store"
	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

// Dispatcher invokes a module by path with resolved inputs.
// Satisfied by *modules.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, path string, inputs map[string]any) (any, error)
}

// Interpreter walks a step tree sequentially. The first failing step aborts
// the walk; its id is carried on the returned error.
type Interpreter struct {
	dispatcher Dispatcher
	events     store.RunEventLog
	logger     *slog.Logger
	tel        *telemetry
}

// NewInterpreter creates an Interpreter. events may be nil.
func NewInterpreter(d Dispatcher, events store.RunEventLog, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{dispatcher: d, events: events, logger: logger, tel: newTelemetry(nil, nil)}
}

// Run executes steps against ec and returns the last action result.
func (in *Interpreter) Run(ctx context.Context, ec *ExecutionContext, steps []schema.Step) (any, error) {
	if err := in.runSteps(ctx, ec, steps); err != nil {
		return nil, err
	}
	return ec.output, nil
}

func (in *Interpreter) runSteps(ctx context.Context, ec *ExecutionContext, steps []schema.Step) error {
	for i := range steps {
		if err := in.runStep(ctx, ec, &steps[i]); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interpreter) runStep(ctx context.Context, ec *ExecutionContext, step *schema.Step) error {
	if err := ctx.Err(); err != nil {
		return schema.NewErrorf(schema.ErrCodeExecution, "run aborted before step %s: %s", step.ID, err.Error()).
			WithStep(step.ID).WithCause(err)
	}

	ctx = logging.WithStepID(ctx, step.ID)
	kind := string(step.Kind)
	ctx, span := in.tel.startStep(ctx, step.ID, kind)

	var err error
	switch step.Kind {
	case schema.StepKindAction:
		err = in.runAction(ctx, ec, step)
	case schema.StepKindCondition:
		err = in.runCondition(ctx, ec, step)
	case schema.StepKindLoop:
		err = in.runLoop(ctx, ec, step)
	default:
		err = schema.NewErrorf(schema.ErrCodeValidation, "step %s: unknown kind %q", step.ID, step.Kind).WithStep(step.ID)
	}
	in.tel.endStep(ctx, span, kind, err)
	return err
}

func (in *Interpreter) runAction(ctx context.Context, ec *ExecutionContext, step *schema.Step) error {
	a := step.Action
	if a == nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "step %s: missing action body", step.ID).WithStep(step.ID)
	}
	inputs := expressions.ResolveMap(a.Inputs, ec.scope.Vars())

	in.record(ctx, ec, step.ID, schema.EventStepStarted, map[string]any{"module": a.Module})
	ec.actions++

	out, err := in.dispatcher.Dispatch(ctx, a.Module, inputs)
	if err != nil {
		err = stepError(step.ID, err)
		in.record(ctx, ec, step.ID, schema.EventStepFailed, map[string]any{"module": a.Module, "error": err.Error()})
		logging.LogWith(ctx, in.logger).Error("step failed", "module", a.Module, "error", err)
		return err
	}

	if a.OutputAs != "" {
		ec.scope.Set(a.OutputAs, out)
	}
	ec.output = out
	in.record(ctx, ec, step.ID, schema.EventStepCompleted, map[string]any{"module": a.Module, "output": out})
	return nil
}

func (in *Interpreter) runCondition(ctx context.Context, ec *ExecutionContext, step *schema.Step) error {
	c := step.Condition
	if c == nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "step %s: missing condition body", step.ID).WithStep(step.ID)
	}
	taken := expressions.Truthy(ec.scope.Resolve(c.Test))

	branch := "else"
	if taken {
		branch = "then"
	}
	in.record(ctx, ec, step.ID, schema.EventConditionEvaluated, map[string]any{"branch": branch})
	logging.LogWith(ctx, in.logger).Debug("condition evaluated", "branch", branch)

	if taken {
		return in.runSteps(ctx, ec, c.Then)
	}
	return in.runSteps(ctx, ec, c.Else)
}

func (in *Interpreter) runLoop(ctx context.Context, ec *ExecutionContext, step *schema.Step) error {
	l := step.Loop
	if l == nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "step %s: missing loop body", step.ID).WithStep(step.ID)
	}
	over := ec.scope.Resolve(l.Over)
	items, ok := toSequence(over)
	if !ok {
		return schema.NewErrorf(schema.ErrCodeResolution,
			"loop %s: 'over' must resolve to a sequence, got %T", step.ID, over).WithStep(step.ID)
	}

	indexVar := l.ItemVariable + "Index"
	for i, item := range items {
		in.record(ctx, ec, step.ID, schema.EventLoopIterStarted, map[string]any{"iteration": i})

		pop := ec.scope.Push(map[string]any{l.ItemVariable: item, indexVar: i})
		err := in.runSteps(ctx, ec, l.Steps)
		pop()
		if err != nil {
			return err
		}
	}
	in.record(ctx, ec, step.ID, schema.EventLoopCompleted, map[string]any{"iterations": len(items)})
	return nil
}

// stepError attributes err to stepID unless a nested step already claimed it.
func stepError(stepID string, err error) error {
	if ee, ok := schema.AsEngineError(err); ok {
		if ee.StepID == "" {
			ee.WithStep(stepID)
		}
		return ee
	}
	return schema.NewErrorf(schema.ErrCodeExecution, "step %s: %s", stepID, err.Error()).
		WithStep(stepID).WithCause(err)
}

// toSequence accepts any slice or array; nil iterates zero times.
func toSequence(v any) ([]any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, true
	case []any:
		return val, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// record appends a step event for persisted runs. Failures are logged only.
func (in *Interpreter) record(ctx context.Context, ec *ExecutionContext, stepID, typ string, payload map[string]any) {
	if in.events == nil || !ec.persisted {
		return
	}
	appendEvent(ctx, in.events, in.logger, ec.RunID, stepID, typ, payload)
}

func appendEvent(ctx context.Context, events store.RunEventLog, logger *slog.Logger, runID, stepID, typ string, payload map[string]any) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			b, _ = json.Marshal(map[string]any{"unserializable": err.Error()})
		}
		raw = b
	}
	ev := &store.RunEvent{RunID: runID, StepID: stepID, Type: typ, Payload: raw}
	if err := events.AppendRunEvent(context.WithoutCancel(ctx), ev); err != nil {
		logging.LogWith(ctx, logger).Warn("run event not recorded", "event", typ, "error", err)
	}
}
