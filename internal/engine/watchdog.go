package engine

import (
	"log/slog"
	"sync"
	"time"
)

// Watchdog logs a warning when a scheduling round's full pass over every
// node takes longer than a configured threshold, surfacing operators that
// violate the "never blocks, does bounded work" rule without aborting
// them: a reducer has no external call to abandon and restart, so there is
// nothing to recreate, only something to report.
type Watchdog struct {
	threshold time.Duration
	logger    *slog.Logger

	mu         sync.Mutex
	slowRounds int
}

// NewWatchdog constructs a Watchdog. A non-positive threshold disables it:
// it returns nil, and the nil receiver methods below are no-ops.
func NewWatchdog(threshold time.Duration, logger *slog.Logger) *Watchdog {
	if threshold <= 0 {
		return nil
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Watchdog{threshold: threshold, logger: logger}
}

// Observe records one pass's duration, logging a warning if it exceeded
// the threshold.
func (wd *Watchdog) Observe(round int, nodeName string, dur time.Duration) {
	if wd == nil || dur <= wd.threshold {
		return
	}

	wd.mu.Lock()
	wd.slowRounds++
	count := wd.slowRounds
	wd.mu.Unlock()

	wd.logger.Warn("engine round exceeded budget",
		slog.Int("round", round),
		slog.String("node", nodeName),
		slog.Duration("duration", dur),
		slog.Duration("threshold", wd.threshold),
		slog.Int("slow_rounds_total", count),
	)
}

// SlowRounds reports how many passes have exceeded the threshold so far.
// Safe to call on a nil Watchdog.
func (wd *Watchdog) SlowRounds() int {
	if wd == nil {
		return 0
	}

	wd.mu.Lock()
	defer wd.mu.Unlock()

	return wd.slowRounds
}
