package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
)

const (
	metricRoundsTotal      = "reduce.rounds.total"
	metricRoundDuration    = "reduce.round.duration.seconds"
	metricCapabilitiesHeld = "reduce.capabilities.held"
	metricInterestingSize  = "reduce.interesting.size"
)

// durationBucketBoundaries covers 1ms to 60s: a round is meant to do
// bounded work per activation (§5), so the tail end matters less than
// resolution near the low end.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// EngineMetrics holds the OTel instruments internal/engine.Engine records
// once per scheduling round.
type EngineMetrics struct {
	roundsTotal      metric.Int64Counter
	roundDuration    metric.Float64Histogram
	capabilitiesHeld metric.Int64Gauge
	interestingSize  metric.Int64Gauge
}

// NewEngineMetrics creates the engine's metric instruments from the given
// meter.
func NewEngineMetrics(mt metric.Meter) (*EngineMetrics, error) {
	rounds, err := mt.Int64Counter(metricRoundsTotal,
		metric.WithDescription("Total scheduling rounds executed"),
		metric.WithUnit("{round}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRoundsTotal, err)
	}

	duration, err := mt.Float64Histogram(metricRoundDuration,
		metric.WithDescription("Wall-clock duration of a full operator-graph poll pass"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRoundDuration, err)
	}

	capabilities, err := mt.Int64Gauge(metricCapabilitiesHeld,
		metric.WithDescription("Capabilities currently held across all operators"),
		metric.WithUnit("{capability}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCapabilitiesHeld, err)
	}

	interesting, err := mt.Int64Gauge(metricInterestingSize,
		metric.WithDescription("Total outstanding interesting-time entries across all keys"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricInterestingSize, err)
	}

	return &EngineMetrics{
		roundsTotal:      rounds,
		roundDuration:    duration,
		capabilitiesHeld: capabilities,
		interestingSize:  interesting,
	}, nil
}

// RecordRound records one completed poll pass: its duration, how many
// capabilities are currently outstanding, and the total size of every
// operator's interesting set. Safe to call on a nil receiver (no-op), so the
// engine can run metrics-free without branching at every call site.
func (em *EngineMetrics) RecordRound(ctx context.Context, duration time.Duration, capabilitiesHeld, interestingSize int) {
	if em == nil {
		return
	}

	em.roundsTotal.Add(ctx, 1)
	em.roundDuration.Record(ctx, duration.Seconds())
	em.capabilitiesHeld.Record(ctx, int64(capabilitiesHeld))
	em.interestingSize.Record(ctx, int64(interestingSize))
}
