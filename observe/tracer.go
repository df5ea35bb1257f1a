package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// CallMeta identifies one exchange-facing operation for telemetry purposes.
type CallMeta struct {
	Exchange  string // Exchange name, e.g. "kraken" (required)
	Resource  string // Logical resource group, e.g. "orders" (may be empty)
	Operation string // Operation name, e.g. "createOrder" (required)
}

// SpanName returns the deterministic span name for this call.
// Format: exchange.call.<exchange>.<operation>
func (m CallMeta) SpanName() string {
	return "exchange.call." + m.Exchange + "." + m.Operation
}

// CallID returns the fully qualified call identifier.
func (m CallMeta) CallID() string {
	if m.Resource != "" {
		return m.Exchange + "." + m.Resource + "." + m.Operation
	}
	return m.Exchange + "." + m.Operation
}

// Tracer wraps OpenTelemetry tracing with exchange-call span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: StartSpan must honor cancellation/deadlines and return ctx.Err() when canceled.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for an exchange call.
	StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// newTracer creates a new Tracer wrapping the given OpenTelemetry tracer.
func newTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with call metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("exchange.name", meta.Exchange),
		attribute.String("exchange.operation", meta.Operation),
		attribute.Bool("exchange.error", false), // Updated in EndSpan if error
	}
	if meta.Resource != "" {
		attrs = append(attrs, attribute.String("exchange.resource", meta.Resource))
	}

	ctx, span := t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)

	return ctx, span
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("exchange.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// newNoopTracer creates a no-op tracer.
func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
