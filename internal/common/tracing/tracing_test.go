package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func spanContext(t *testing.T) context.Context {
	t.Helper()
	tid, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	sid, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid, TraceFlags: trace.FlagsSampled})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestAMQPRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := spanContext(t)
	h := InjectAMQP(ctx, nil)
	if h["traceparent"] != "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01" {
		t.Fatalf("unexpected traceparent: %v", h["traceparent"])
	}

	got := trace.SpanContextFromContext(ExtractAMQP(context.Background(), h))
	if got.TraceID().String() != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("trace id not extracted: %v", got.TraceID())
	}
}

func TestKafkaHeaders(t *testing.T) {
	t.Parallel()

	if hs := KafkaHeaders(context.Background()); len(hs) != 0 {
		t.Fatalf("expected no headers without a span, got %v", hs)
	}
	hs := KafkaHeaders(spanContext(t))
	if len(hs) != 1 || hs[0].Key != "traceparent" {
		t.Fatalf("unexpected headers: %v", hs)
	}
}

func TestInitWithoutExporter(t *testing.T) {
	t.Parallel()

	shutdown, err := Init(context.Background(), "svc", Config{})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
