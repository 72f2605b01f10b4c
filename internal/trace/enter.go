package trace

import "github.com/flowcore/differential/internal/lattice"

// TraceEnter views an Inner-timed trace through an Outer/Inner Refinement
// without copying any underlying data: every time the inner cursor reports
// is mapped back out with refinement.ToOuter before reaching the caller.
// This is the trace-level half of a Collection's Leave operator: scope
// entry/exit expressed as time refinement.
type TraceEnter[Outer any, Inner any, K any, V any, D any] struct {
	inner      Cursor[K, V, Inner, D]
	refinement lattice.Refinement[Outer, Inner]
}

// NewTraceEnter wraps an inner cursor, presenting its times in Outer scope.
func NewTraceEnter[Outer any, Inner any, K any, V any, D any](
	inner Cursor[K, V, Inner, D],
	refinement lattice.Refinement[Outer, Inner],
) *TraceEnter[Outer, Inner, K, V, D] {
	return &TraceEnter[Outer, Inner, K, V, D]{inner: inner, refinement: refinement}
}

func (e *TraceEnter[Outer, Inner, K, V, D]) KeyValid() bool { return e.inner.KeyValid() }
func (e *TraceEnter[Outer, Inner, K, V, D]) Key() K         { return e.inner.Key() }
func (e *TraceEnter[Outer, Inner, K, V, D]) ValValid() bool { return e.inner.ValValid() }
func (e *TraceEnter[Outer, Inner, K, V, D]) Val() V         { return e.inner.Val() }
func (e *TraceEnter[Outer, Inner, K, V, D]) StepKey()       { e.inner.StepKey() }
func (e *TraceEnter[Outer, Inner, K, V, D]) SeekKey(key K)  { e.inner.SeekKey(key) }
func (e *TraceEnter[Outer, Inner, K, V, D]) StepVal()       { e.inner.StepVal() }
func (e *TraceEnter[Outer, Inner, K, V, D]) SeekVal(val V)  { e.inner.SeekVal(val) }
func (e *TraceEnter[Outer, Inner, K, V, D]) RewindKeys()    { e.inner.RewindKeys() }
func (e *TraceEnter[Outer, Inner, K, V, D]) RewindVals()    { e.inner.RewindVals() }

// MapTimes invokes f with every inner time remapped to Outer scope via the
// refinement.
func (e *TraceEnter[Outer, Inner, K, V, D]) MapTimes(f func(t Outer, d D)) {
	e.inner.MapTimes(func(t Inner, d D) {
		f(e.refinement.ToOuter(t), d)
	})
}
