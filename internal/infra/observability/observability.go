// Package observability provides request tracing and Prometheus metrics.
//
// Tracing is a lightweight in-process span recorder: every API request and
// every score recalculation is recorded as a span, kept in a ring buffer
// for inspection through the debug endpoint. Metrics cover the HTTP
// surface, the khata engine, and the POS flow.
package observability

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Spans ──────────────────────────────────────────────────────────────────

// SpanStatus indicates success/failure.
type SpanStatus int

const (
	SpanOK SpanStatus = iota
	SpanError
)

// Span records one unit of work: an API request, a recalculation, a
// payment settlement.
type Span struct {
	TraceID   string            `json:"trace_id"`
	Operation string            `json:"operation"`
	StartTime time.Time         `json:"start_time"`
	Duration  time.Duration     `json:"duration,omitempty"`
	Status    SpanStatus        `json:"status"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// Tracer stores recent spans in a fixed-size ring buffer.
type Tracer struct {
	mu       sync.Mutex
	spans    []Span
	maxSpans int
	enabled  bool
}

// NewTracer creates a tracer keeping at most maxSpans recent spans.
func NewTracer(maxSpans int) *Tracer {
	if maxSpans <= 0 {
		maxSpans = 1000
	}
	return &Tracer{
		spans:    make([]Span, 0, maxSpans),
		maxSpans: maxSpans,
		enabled:  true,
	}
}

// StartSpan begins a span. The caller must call EndSpan when done.
func (t *Tracer) StartSpan(ctx context.Context, operation string, attrs map[string]string) *Span {
	if !t.enabled {
		return &Span{Operation: operation}
	}
	return &Span{
		TraceID:   traceIDFromContext(ctx),
		Operation: operation,
		StartTime: time.Now(),
		Status:    SpanOK,
		Attrs:     attrs,
	}
}

// EndSpan completes a span and records it.
func (t *Tracer) EndSpan(span *Span, err error) {
	if !t.enabled || span == nil {
		return
	}

	span.Duration = time.Since(span.StartTime)
	if err != nil {
		span.Status = SpanError
		if span.Attrs == nil {
			span.Attrs = make(map[string]string)
		}
		span.Attrs["error"] = err.Error()
		SpanErrors.Inc()
	}
	SpansRecorded.Inc()

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.spans) >= t.maxSpans {
		t.spans = t.spans[1:]
	}
	t.spans = append(t.spans, *span)
}

// Spans returns a copy of the most recent spans, newest last.
func (t *Tracer) Spans(limit int) []Span {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit <= 0 || limit > len(t.spans) {
		limit = len(t.spans)
	}
	start := len(t.spans) - limit
	out := make([]Span, limit)
	copy(out, t.spans[start:])
	return out
}

// SpanCount returns the number of recorded spans.
func (t *Tracer) SpanCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.spans)
}

// Reset clears all recorded spans.
func (t *Tracer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = t.spans[:0]
}

// ─── Context Helpers ────────────────────────────────────────────────────────

type contextKey string

const traceIDKey contextKey = "dukaan-trace-id"

// WithTraceID returns a context carrying the given trace ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func traceIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return generateID()
}

// generateID creates a short unique ID (not cryptographically secure).
var spanCounter atomic.Int64

func generateID() string {
	n := spanCounter.Add(1)
	return fmt.Sprintf("%s-%d", time.Now().Format("20060102150405"), n)
}

// ─── HTTP Metrics ───────────────────────────────────────────────────────────

// HTTPRequests counts API requests by route and status class.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dukaan",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "Total API requests by route, method, and status class.",
}, []string{"route", "method", "status"})

// HTTPDuration tracks API request latency.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "dukaan",
	Subsystem: "http",
	Name:      "request_duration_ms",
	Help:      "API request duration in milliseconds.",
	Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
}, []string{"route"})

// ─── Khata Metrics ──────────────────────────────────────────────────────────

// ScoreRecalculations counts score recalculations by outcome.
var ScoreRecalculations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dukaan",
	Subsystem: "khata",
	Name:      "recalculations_total",
	Help:      "Total khata score recalculations by outcome.",
}, []string{"outcome"})

// ScoreDistribution tracks the distribution of computed scores.
var ScoreDistribution = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "dukaan",
	Subsystem: "khata",
	Name:      "score",
	Help:      "Distribution of computed khata scores.",
	Buckets:   []float64{300, 400, 500, 600, 700, 800, 900},
})

// ─── Billing Metrics ────────────────────────────────────────────────────────

// BillsCreated counts bills by payment mode.
var BillsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dukaan",
	Subsystem: "billing",
	Name:      "bills_total",
	Help:      "Total bills created by payment mode.",
}, []string{"mode"})

// BillValue tracks bill totals in rupees.
var BillValue = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "dukaan",
	Subsystem: "billing",
	Name:      "bill_value_rupees",
	Help:      "Distribution of bill totals in rupees.",
	Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
})

// PaymentsRecorded counts khata payments settled.
var PaymentsRecorded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "dukaan",
	Subsystem: "billing",
	Name:      "khata_payments_total",
	Help:      "Total khata payments recorded.",
})

// ─── Deal Metrics ───────────────────────────────────────────────────────────

// DealJoins counts group-buy deal joins.
var DealJoins = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "dukaan",
	Subsystem: "deals",
	Name:      "joins_total",
	Help:      "Total group-buy deal joins.",
})

// ─── Span Metrics ───────────────────────────────────────────────────────────

// SpansRecorded counts total spans recorded.
var SpansRecorded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "dukaan",
	Subsystem: "traces",
	Name:      "spans_recorded_total",
	Help:      "Total trace spans recorded.",
})

// SpanErrors counts error spans.
var SpanErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "dukaan",
	Subsystem: "traces",
	Name:      "error_spans_total",
	Help:      "Total trace spans with error status.",
})
