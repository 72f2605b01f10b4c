// Package engine implements the differential dataflow scheduler: admit one
// round of new input at the graph's leaves, then run every operator in
// topological order, repeating full passes over the graph until one
// produces no progress at all.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/flowcore/differential/pkg/collection"
	"github.com/flowcore/differential/pkg/observability"
)

// Config groups an Engine's dependencies.
type Config struct {
	// Nodes is a topologically sorted operator list, normally
	// collection.Graph.Compile's result.
	Nodes []collection.Node

	// Metrics is optional; nil disables per-round instrumentation.
	Metrics *observability.EngineMetrics

	// Watchdog is optional; nil disables slow-round warnings.
	Watchdog *Watchdog
}

// Engine drives a topologically sorted operator graph to fixpoint once per
// Advance call, recording the round's duration, capabilities held, and
// interesting-set size, and warning via its Watchdog when an individual
// pass over the graph runs long.
type Engine struct {
	nodes    []collection.Node
	metrics  *observability.EngineMetrics
	watchdog *Watchdog

	round int
}

// New constructs an Engine from cfg.
func New(cfg Config) *Engine {
	return &Engine{
		nodes:    cfg.Nodes,
		metrics:  cfg.Metrics,
		watchdog: cfg.Watchdog,
	}
}

// Advance admits one round of new input via admit — a caller-supplied
// closure that pushes freshly sealed batches onto the graph's Source
// nodes — then repeatedly steps every node in topological order until a
// full pass seals no non-empty batch anywhere in the graph. admit may be
// nil for a round that only drains work already admitted.
//
// Input admission is a closure rather than a typed parameter because Go
// has no type-erased Batch the engine could accept uniformly across nodes
// of differing K/V/T/D: the caller (which built the graph and therefore
// knows its concrete types) pushes batches directly onto the relevant
// collection.Collection values via Push, then hands control to Advance to
// drain the consequences. See DESIGN.md for why admit is a closure rather
// than a typed inputs map.
//
// Advance reports the number of full passes it ran before reaching
// fixpoint (always >= 1).
func (e *Engine) Advance(ctx context.Context, admit func() error) (int, error) {
	if admit != nil {
		if err := admit(); err != nil {
			return 0, fmt.Errorf("engine: admit input: %w", err)
		}
	}

	e.round++

	roundStart := time.Now()
	passes := 0

	for {
		passes++

		passStart := time.Now()
		progressed := false

		for _, n := range e.nodes {
			p, err := n.Step(ctx)
			if err != nil {
				return passes, fmt.Errorf("engine: node %q step: %w", n.Name(), err)
			}

			if p {
				progressed = true
			}
		}

		e.watchdog.Observe(e.round, fmt.Sprintf("pass %d", passes), time.Since(passStart))

		if !progressed {
			break
		}
	}

	e.metrics.RecordRound(ctx, time.Since(roundStart), e.capabilitiesHeld(), e.interestingSize())

	return passes, nil
}

// capabilitiesHeld sums every node's current frontier size — the engine's
// proxy for "capabilities currently held across all operators".
func (e *Engine) capabilitiesHeld() int {
	total := 0

	for _, n := range e.nodes {
		if f, ok := n.(collection.Frontiered); ok {
			total += f.FrontierSize()
		}
	}

	return total
}

// interestingSize sums every reducer-backed node's outstanding interesting
// set.
func (e *Engine) interestingSize() int {
	total := 0

	for _, n := range e.nodes {
		if in, ok := n.(collection.Instrumented); ok {
			total += in.InterestingSize()
		}
	}

	return total
}

// Round returns the number of Advance calls this Engine has completed.
func (e *Engine) Round() int {
	return e.round
}
