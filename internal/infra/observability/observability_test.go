package observability

import (
	"context"
	"errors"
	"testing"
)

// ─── Tracer ─────────────────────────────────────────────────────────────────

func TestTracer_StartEnd_RecordsSpan(t *testing.T) {
	tr := NewTracer(100)
	ctx := context.Background()

	span := tr.StartSpan(ctx, "bill.create", map[string]string{"mode": "KHATA"})
	tr.EndSpan(span, nil)

	if tr.SpanCount() != 1 {
		t.Fatalf("SpanCount() = %d, want 1", tr.SpanCount())
	}

	spans := tr.Spans(1)
	if len(spans) != 1 {
		t.Fatalf("Spans(1) returned %d, want 1", len(spans))
	}
	if spans[0].Operation != "bill.create" {
		t.Errorf("Operation = %q, want %q", spans[0].Operation, "bill.create")
	}
	if spans[0].Status != SpanOK {
		t.Errorf("Status = %d, want SpanOK", spans[0].Status)
	}
	if spans[0].Attrs["mode"] != "KHATA" {
		t.Errorf("Attrs[mode] = %q, want %q", spans[0].Attrs["mode"], "KHATA")
	}
}

func TestTracer_EndSpan_RecordsError(t *testing.T) {
	tr := NewTracer(100)
	ctx := context.Background()

	span := tr.StartSpan(ctx, "khata.recalculate", nil)
	tr.EndSpan(span, errors.New("boom"))

	spans := tr.Spans(1)
	if spans[0].Status != SpanError {
		t.Errorf("Status = %d, want SpanError", spans[0].Status)
	}
	if spans[0].Attrs["error"] != "boom" {
		t.Errorf("error attr = %q, want %q", spans[0].Attrs["error"], "boom")
	}
}

func TestTracer_RingBuffer_Overflow(t *testing.T) {
	tr := NewTracer(3)
	ctx := context.Background()

	// Record 5 spans in a buffer of 3
	for i := 0; i < 5; i++ {
		span := tr.StartSpan(ctx, "op", nil)
		tr.EndSpan(span, nil)
	}

	if tr.SpanCount() != 3 {
		t.Errorf("SpanCount() = %d, want 3 (ring buffer overflow)", tr.SpanCount())
	}
}

func TestTracer_Spans_Limit(t *testing.T) {
	tr := NewTracer(100)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		span := tr.StartSpan(ctx, "op", nil)
		tr.EndSpan(span, nil)
	}

	spans := tr.Spans(3)
	if len(spans) != 3 {
		t.Errorf("Spans(3) returned %d, want 3", len(spans))
	}
}

func TestTracer_Spans_ZeroLimit(t *testing.T) {
	tr := NewTracer(100)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		span := tr.StartSpan(ctx, "op", nil)
		tr.EndSpan(span, nil)
	}

	spans := tr.Spans(0)
	if len(spans) != 5 {
		t.Errorf("Spans(0) returned %d, want all 5", len(spans))
	}
}

func TestTracer_Reset(t *testing.T) {
	tr := NewTracer(100)
	ctx := context.Background()
	span := tr.StartSpan(ctx, "op", nil)
	tr.EndSpan(span, nil)

	tr.Reset()
	if tr.SpanCount() != 0 {
		t.Errorf("SpanCount() after Reset = %d, want 0", tr.SpanCount())
	}
}

// ─── Context Propagation ────────────────────────────────────────────────────

func TestTracer_ContextPropagation(t *testing.T) {
	tr := NewTracer(100)
	ctx := WithTraceID(context.Background(), "trace-abc")

	span := tr.StartSpan(ctx, "child-op", nil)
	tr.EndSpan(span, nil)

	spans := tr.Spans(1)
	if spans[0].TraceID != "trace-abc" {
		t.Errorf("TraceID = %q, want %q", spans[0].TraceID, "trace-abc")
	}
}

func TestTracer_AutoGeneratesTraceID(t *testing.T) {
	tr := NewTracer(100)
	ctx := context.Background() // no trace ID in context

	span := tr.StartSpan(ctx, "root-op", nil)
	tr.EndSpan(span, nil)

	spans := tr.Spans(1)
	if spans[0].TraceID == "" {
		t.Error("TraceID should be auto-generated, got empty")
	}
}
