package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Ops instruments a family of named operations: each gets a span and is
// counted in <prefix>.operations / .errors / .operation.duration.
type Ops struct {
	prefix string
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// NewOps builds instruments under scope. With telemetry disabled the global
// providers are no-ops, so every call is cheap.
func NewOps(scope, prefix string) *Ops {
	m := Meter(scope)
	ops, _ := m.Int64Counter(prefix+".operations",
		metric.WithDescription("Total operations executed"),
	)
	dur, _ := m.Float64Histogram(prefix+".operation.duration",
		metric.WithDescription("Operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter(prefix+".errors",
		metric.WithDescription("Total operation errors"),
	)
	return &Ops{prefix: prefix, tracer: Tracer(scope), ops: ops, dur: dur, errs: errs}
}

// Op is an in-flight operation started by Ops.Start.
type Op struct {
	ops   *Ops
	span  trace.Span
	start time.Time
	attrs []attribute.KeyValue
}

// Start opens a span named <prefix>.<name> and counts the operation.
func (o *Ops) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *Op) {
	all := append([]attribute.KeyValue{attribute.String("qc.operation", name)}, attrs...)
	ctx, span := o.tracer.Start(ctx, o.prefix+"."+name, trace.WithAttributes(all...))
	o.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, &Op{ops: o, span: span, start: time.Now(), attrs: all}
}

// End records the duration and err (if any) and ends the span.
func (op *Op) End(ctx context.Context, err error) {
	ms := float64(time.Since(op.start).Milliseconds())
	op.ops.dur.Record(ctx, ms, metric.WithAttributes(op.attrs...))
	if err != nil {
		op.span.RecordError(err)
		op.span.SetStatus(codes.Error, err.Error())
		op.ops.errs.Add(ctx, 1, metric.WithAttributes(op.attrs...))
	}
	op.span.End()
}

// SetAttributes adds attributes to the span only.
func (op *Op) SetAttributes(attrs ...attribute.KeyValue) {
	op.span.SetAttributes(attrs...)
}
