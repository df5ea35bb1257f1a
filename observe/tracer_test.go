package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestCallMeta_SpanName verifies the deterministic span name format.
func TestCallMeta_SpanName(t *testing.T) {
	meta := CallMeta{
		Exchange:  "kraken",
		Operation: "getTicker",
	}

	expected := "exchange.call.kraken.getTicker"
	if got := meta.SpanName(); got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}

// TestCallMeta_CallID verifies ID generation with and without resource.
func TestCallMeta_CallID(t *testing.T) {
	tests := []struct {
		name     string
		meta     CallMeta
		expected string
	}{
		{
			name:     "with resource",
			meta:     CallMeta{Exchange: "binance", Resource: "orders", Operation: "createOrder"},
			expected: "binance.orders.createOrder",
		},
		{
			name:     "without resource",
			meta:     CallMeta{Exchange: "kraken", Operation: "getTicker"},
			expected: "kraken.getTicker",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.meta.CallID(); got != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

// TestTracer_SpanAttributes verifies all attributes are present on span.
func TestTracer_SpanAttributes(t *testing.T) {
	// Set up in-memory span recorder
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	tr := &tracerImpl{tracer: tracer}
	meta := CallMeta{
		Exchange:  "binance",
		Resource:  "orders",
		Operation: "createOrder",
	}

	ctx, span := tr.StartSpan(context.Background(), meta)
	tr.EndSpan(span, nil)
	_ = ctx // Suppress unused warning

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	s := spans[0]

	// Verify span name
	if s.Name() != "exchange.call.binance.createOrder" {
		t.Errorf("expected span name 'exchange.call.binance.createOrder', got %q", s.Name())
	}

	// Verify attributes
	attrs := s.Attributes()
	attrMap := make(map[string]attribute.Value)
	for _, a := range attrs {
		attrMap[string(a.Key)] = a.Value
	}

	if v, ok := attrMap["exchange.name"]; !ok || v.AsString() != "binance" {
		t.Errorf("expected exchange.name='binance', got %v", v)
	}
	if v, ok := attrMap["exchange.operation"]; !ok || v.AsString() != "createOrder" {
		t.Errorf("expected exchange.operation='createOrder', got %v", v)
	}
	if v, ok := attrMap["exchange.resource"]; !ok || v.AsString() != "orders" {
		t.Errorf("expected exchange.resource='orders', got %v", v)
	}
	if v, ok := attrMap["exchange.error"]; !ok || v.AsBool() != false {
		t.Errorf("expected exchange.error=false, got %v", v)
	}
}

// TestTracer_SpanAttributesMinimal verifies resource attribute is omitted when empty.
func TestTracer_SpanAttributesMinimal(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	tr := &tracerImpl{tracer: tracer}
	meta := CallMeta{
		Exchange:  "kraken",
		Operation: "getTicker",
	}

	ctx, span := tr.StartSpan(context.Background(), meta)
	tr.EndSpan(span, nil)
	_ = ctx

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	s := spans[0]
	attrs := s.Attributes()
	attrMap := make(map[string]attribute.Value)
	for _, a := range attrs {
		attrMap[string(a.Key)] = a.Value
	}

	// Required attributes should be present
	if _, ok := attrMap["exchange.name"]; !ok {
		t.Error("expected exchange.name attribute")
	}
	if _, ok := attrMap["exchange.operation"]; !ok {
		t.Error("expected exchange.operation attribute")
	}
	if _, ok := attrMap["exchange.error"]; !ok {
		t.Error("expected exchange.error attribute")
	}

	// Resource should NOT be present when empty
	if v, ok := attrMap["exchange.resource"]; ok && v.AsString() != "" {
		t.Errorf("expected no exchange.resource, got %v", v)
	}
}

// TestTracer_ContextPropagation verifies parent span is propagated.
func TestTracer_ContextPropagation(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	tr := &tracerImpl{tracer: tracer}
	meta := CallMeta{Exchange: "kraken", Operation: "getTicker"}

	// Create parent span
	parentCtx, parentSpan := tracer.Start(context.Background(), "parent")

	// Create child span through our tracer
	childCtx, childSpan := tr.StartSpan(parentCtx, meta)
	tr.EndSpan(childSpan, nil)
	parentSpan.End()
	_ = childCtx

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	// Find the child span (the one with exchange.call prefix)
	var child sdktrace.ReadOnlySpan
	for _, s := range spans {
		if s.Name() == "exchange.call.kraken.getTicker" {
			child = s
			break
		}
	}
	if child == nil {
		t.Fatal("child span not found")
	}

	// Verify parent-child relationship
	if child.Parent().TraceID() != parentSpan.SpanContext().TraceID() {
		t.Error("child span should have same trace ID as parent")
	}
	if !child.Parent().SpanID().IsValid() {
		t.Error("child span should have valid parent span ID")
	}
}

// TestTracer_ErrorRecording verifies error sets span status and attribute.
func TestTracer_ErrorRecording(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	tr := &tracerImpl{tracer: tracer}
	meta := CallMeta{Exchange: "kraken", Operation: "createOrder"}

	ctx, span := tr.StartSpan(context.Background(), meta)
	testErr := errors.New("order rejected")
	tr.EndSpan(span, testErr)
	_ = ctx

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	s := spans[0]

	// Verify error status
	if s.Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", s.Status().Code)
	}

	// Verify exchange.error attribute
	attrs := s.Attributes()
	var callError bool
	for _, a := range attrs {
		if string(a.Key) == "exchange.error" {
			callError = a.Value.AsBool()
			break
		}
	}
	if !callError {
		t.Error("expected exchange.error=true")
	}
}

// TestTracer_SpanKindClient verifies exchange-call spans are client spans.
func TestTracer_SpanKindClient(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	tr := &tracerImpl{tracer: tracer}
	_, span := tr.StartSpan(context.Background(), CallMeta{Exchange: "kraken", Operation: "getTicker"})
	tr.EndSpan(span, nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if got := spans[0].SpanKind().String(); got != "client" {
		t.Errorf("expected span kind client, got %q", got)
	}
}
