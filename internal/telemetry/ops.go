package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const coreScopeName = "github.com/babelhq/babel/core"

// OpRecorder instruments babel's core operations with OTel tracing and
// metrics. Every operation gets a span and is counted in babel.core.*
// metrics. Use NewOpRecorder; when telemetry is disabled the recorder is
// inert and every call is a cheap no-op.
type OpRecorder struct {
	enabled   bool
	tracer    trace.Tracer
	ops       metric.Int64Counter
	dur       metric.Float64Histogram
	errs      metric.Int64Counter
	events    metric.Int64Counter
	nodeGauge metric.Int64Gauge
}

// NewOpRecorder builds the recorder used by workspace operations.
func NewOpRecorder() *OpRecorder {
	if !Enabled() {
		return &OpRecorder{}
	}
	m := Meter(coreScopeName)
	ops, _ := m.Int64Counter("babel.core.operations",
		metric.WithDescription("Total core operations executed"),
	)
	dur, _ := m.Float64Histogram("babel.core.operation.duration",
		metric.WithDescription("Core operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("babel.core.errors",
		metric.WithDescription("Total core operation errors"),
	)
	events, _ := m.Int64Counter("babel.events.appended",
		metric.WithDescription("Events appended to the journals"),
	)
	nodeGauge, _ := m.Int64Gauge("babel.graph.nodes",
		metric.WithDescription("Current number of graph nodes by type (snapshot from Status)"),
	)
	return &OpRecorder{
		enabled:   true,
		tracer:    Tracer(coreScopeName),
		ops:       ops,
		dur:       dur,
		errs:      errs,
		events:    events,
		nodeGauge: nodeGauge,
	}
}

// Op is one in-flight operation started by Start. End must be called
// exactly once.
type Op struct {
	rec   *OpRecorder
	span  trace.Span
	start time.Time
	attrs []attribute.KeyValue
}

// Start opens a span and counts the named operation. The returned context
// carries the span for anything the operation calls.
func (r *OpRecorder) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *Op) {
	if !r.enabled {
		return ctx, &Op{}
	}
	all := append([]attribute.KeyValue{attribute.String("babel.operation", name)}, attrs...)
	ctx, span := r.tracer.Start(ctx, "core."+name, trace.WithAttributes(all...))
	r.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, &Op{rec: r, span: span, start: time.Now(), attrs: all}
}

// End closes the operation: duration always, error status when err != nil.
func (o *Op) End(ctx context.Context, err error) {
	if o.rec == nil {
		return
	}
	ms := float64(time.Since(o.start).Milliseconds())
	o.rec.dur.Record(ctx, ms, metric.WithAttributes(o.attrs...))
	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
		o.rec.errs.Add(ctx, 1, metric.WithAttributes(o.attrs...))
	}
	o.span.End()
}

// Annotate adds attributes to the running span, for values only known
// mid-operation such as result counts.
func (o *Op) Annotate(attrs ...attribute.KeyValue) {
	if o.rec == nil {
		return
	}
	o.span.SetAttributes(attrs...)
}

// CountEvents records n events appended under the given scope.
func (r *OpRecorder) CountEvents(ctx context.Context, n int, scope string) {
	if !r.enabled || n == 0 {
		return
	}
	r.events.Add(ctx, int64(n), metric.WithAttributes(attribute.String("babel.scope", scope)))
}

// RecordNodeCount records a gauge snapshot of graph size, broken down by
// node type.
func (r *OpRecorder) RecordNodeCount(ctx context.Context, nodeType string, n int64) {
	if !r.enabled {
		return
	}
	r.nodeGauge.Record(ctx, n, metric.WithAttributes(attribute.String("type", nodeType)))
}
