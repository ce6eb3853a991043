package modules

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/seanmmay/b0t-sub000/internal/logging"
	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

const tracerName = "github.com/seanmmay/b0t-sub000/internal/modules"

// Dispatcher resolves module paths against a Registry and invokes them with
// inputs shaped to each callable's declared parameters.
type Dispatcher struct {
	registry *Registry
	limiter  RateLimiter
	logger   *slog.Logger
	tracer   trace.Tracer
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRateLimiter throttles every dispatch by category.module.
func WithRateLimiter(l RateLimiter) DispatcherOption {
	return func(d *Dispatcher) { d.limiter = l }
}

// WithLogger sets the dispatcher's logger.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher creates a Dispatcher over reg.
func NewDispatcher(reg *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Registry returns the catalog backing this dispatcher.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Dispatch invokes the operation at path with already-resolved inputs.
// Failures of the callable are wrapped as OPERATION_FAILED with the module path.
func (d *Dispatcher) Dispatch(ctx context.Context, path string, inputs map[string]any) (any, error) {
	ctx, span := d.tracer.Start(ctx, "module.dispatch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("module.path", path)),
	)
	defer span.End()

	out, err := d.dispatch(ctx, path, inputs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

func (d *Dispatcher) dispatch(ctx context.Context, path string, inputs map[string]any) (any, error) {
	desc, p, err := d.registry.Resolve(path)
	if err != nil {
		return nil, err
	}

	args, err := AdaptArguments(desc, inputs)
	if err != nil {
		return nil, err
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx, p.Category+"."+p.Module); err != nil {
			return nil, err
		}
	}

	logging.LogWith(ctx, d.logger).Debug("dispatching module",
		slog.String("module", p.String()),
		slog.String("style", desc.Style.String()),
		slog.Int("args", len(args)),
	)

	out, err := d.invoke(ctx, desc, p, args)
	if err != nil {
		wrapped := schema.NewErrorf(schema.ErrCodeOperationFailed,
			"module %s failed: %s", p.String(), err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"module": p.String()})
		if ee, ok := schema.AsEngineError(err); ok {
			wrapped.WithDetails(map[string]any{"cause_code": ee.Code})
		}
		return nil, wrapped
	}
	return out, nil
}

// invoke calls desc, turning a panic in the callable into an error so the
// run fails at this step instead of unwinding the executor.
func (d *Dispatcher) invoke(ctx context.Context, desc Descriptor, p Path, args []any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.LogWith(ctx, d.logger).Error("module panicked",
				slog.String("module", p.String()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			out, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return desc.Invoke(ctx, args)
}

// AdaptArguments shapes the named inputs map into the argument list desc expects.
//
//  1. Empty inputs: no arguments.
//  2. Object-shaped callable: inputs as one argument.
//  3. Scalar callable with exactly one input: that value.
//  4. Positional callable: one argument per declared name, in declared order,
//     only when the input keys match the declared names exactly.
//
// Any other combination fails with PARAMETER_MISMATCH. Input order is never
// used for binding.
func AdaptArguments(desc Descriptor, inputs map[string]any) ([]any, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	switch desc.Style {
	case StyleSingleObject:
		return []any{inputs}, nil

	case StyleSingleScalar:
		if len(inputs) != 1 {
			return nil, mismatch(desc, inputs, "expects a single value")
		}
		for _, v := range inputs {
			return []any{v}, nil
		}

	case StylePositional:
		if len(inputs) != len(desc.ParameterNames) {
			return nil, mismatch(desc, inputs, "input keys do not match declared parameters")
		}
		args := make([]any, len(desc.ParameterNames))
		for i, name := range desc.ParameterNames {
			v, ok := inputs[name]
			if !ok {
				return nil, mismatch(desc, inputs, "missing parameter "+name)
			}
			args[i] = v
		}
		return args, nil
	}

	return nil, mismatch(desc, inputs, "takes no parameters")
}

func mismatch(desc Descriptor, inputs map[string]any, reason string) *schema.EngineError {
	provided := make([]string, 0, len(inputs))
	for k := range inputs {
		provided = append(provided, k)
	}
	sort.Strings(provided)
	expected := append([]string{}, desc.ParameterNames...)

	return schema.NewErrorf(schema.ErrCodeParameterMismatch,
		"module %s %s: expected [%s], provided [%s]",
		desc.Path, reason, strings.Join(expected, ", "), strings.Join(provided, ", ")).
		WithDetails(map[string]any{
			"module":   desc.Path,
			"expected": expected,
			"provided": provided,
		})
}
