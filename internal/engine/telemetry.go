package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/seanmmay/b0t-sub000/internal/engine"

// telemetry bundles the executor's tracer and instruments. Instrument
// creation errors fall back to no-op instruments from the same meter.
type telemetry struct {
	tracer      trace.Tracer
	runs        metric.Int64Counter
	steps       metric.Int64Counter
	runDuration metric.Float64Histogram
}

func newTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) *telemetry {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	t := &telemetry{tracer: tp.Tracer(instrumentationName)}
	t.runs, _ = meter.Int64Counter("b0t.workflow.runs",
		metric.WithDescription("Workflow runs by final status"),
		metric.WithUnit("{run}"))
	t.steps, _ = meter.Int64Counter("b0t.workflow.steps",
		metric.WithDescription("Executed steps by kind and outcome"),
		metric.WithUnit("{step}"))
	t.runDuration, _ = meter.Float64Histogram("b0t.workflow.run.duration",
		metric.WithDescription("Workflow run duration"),
		metric.WithUnit("ms"))
	return t
}

func (t *telemetry) startRun(ctx context.Context, workflowID, userID, triggerType string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "workflow.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("workflow.id", workflowID),
			attribute.String("user.id", userID),
			attribute.String("trigger.type", triggerType),
		),
	)
}

func (t *telemetry) startStep(ctx context.Context, stepID, kind string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "workflow.step",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("step.id", stepID),
			attribute.String("step.kind", kind),
		),
	)
}

func (t *telemetry) endStep(ctx context.Context, span trace.Span, kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	if t.steps != nil {
		t.steps.Add(ctx, 1, metric.WithAttributes(
			attribute.String("step.kind", kind),
			attribute.String("outcome", outcome),
		))
	}
}

func (t *telemetry) endRun(ctx context.Context, span trace.Span, runID, status string, elapsed time.Duration, err error) {
	span.SetAttributes(attribute.String("run.id", runID), attribute.String("run.status", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	attrs := metric.WithAttributes(attribute.String("run.status", status))
	if t.runs != nil {
		t.runs.Add(ctx, 1, attrs)
	}
	if t.runDuration != nil {
		t.runDuration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	}
}
