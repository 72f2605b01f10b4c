package reduce

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Metrics is the reducer's optional observability hook. A nil *Metrics
// disables all instrumentation: every method here tolerates a nil
// receiver.
type Metrics struct {
	Tracer          trace.Tracer
	KeyComputeHisto metric.Float64Histogram
}

// startRound opens the "reduce.round" span used by Poll, or returns a
// no-op context/span pair if m is nil or untraced.
func (m *Metrics) startRound(ctx context.Context) (context.Context, func(attrs ...attribute.KeyValue)) {
	if m == nil || m.Tracer == nil {
		return ctx, func(...attribute.KeyValue) {}
	}

	ctx, span := m.Tracer.Start(ctx, "reduce.round")

	return ctx, func(attrs ...attribute.KeyValue) {
		span.SetAttributes(attrs...)
		span.End()
	}
}

// observeKeyCompute records the wall-clock duration of one per-key compute
// call against the reduce_key_compute_duration_seconds histogram.
func (m *Metrics) observeKeyCompute(ctx context.Context, d time.Duration) {
	if m == nil || m.KeyComputeHisto == nil {
		return
	}

	m.KeyComputeHisto.Record(ctx, d.Seconds())
}
