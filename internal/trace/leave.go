package trace

import "github.com/flowcore/differential/internal/lattice"

// TraceLeave is TraceEnter's dual: it presents an Outer-timed cursor's
// entries in Inner scope by mapping every time through refinement.ToInner.
// A Collection's Enter operator (pushing a collection into a nested scope)
// is built on this; TraceEnter itself backs Leave (pulling a nested
// collection's result back out).
type TraceLeave[Outer any, Inner any, K any, V any, D any] struct {
	inner      Cursor[K, V, Outer, D]
	refinement lattice.Refinement[Outer, Inner]
}

// NewTraceLeave wraps an Outer-timed cursor, presenting its times in Inner scope.
func NewTraceLeave[Outer any, Inner any, K any, V any, D any](
	inner Cursor[K, V, Outer, D],
	refinement lattice.Refinement[Outer, Inner],
) *TraceLeave[Outer, Inner, K, V, D] {
	return &TraceLeave[Outer, Inner, K, V, D]{inner: inner, refinement: refinement}
}

func (e *TraceLeave[Outer, Inner, K, V, D]) KeyValid() bool { return e.inner.KeyValid() }
func (e *TraceLeave[Outer, Inner, K, V, D]) Key() K         { return e.inner.Key() }
func (e *TraceLeave[Outer, Inner, K, V, D]) ValValid() bool { return e.inner.ValValid() }
func (e *TraceLeave[Outer, Inner, K, V, D]) Val() V         { return e.inner.Val() }
func (e *TraceLeave[Outer, Inner, K, V, D]) StepKey()       { e.inner.StepKey() }
func (e *TraceLeave[Outer, Inner, K, V, D]) SeekKey(key K)  { e.inner.SeekKey(key) }
func (e *TraceLeave[Outer, Inner, K, V, D]) StepVal()       { e.inner.StepVal() }
func (e *TraceLeave[Outer, Inner, K, V, D]) SeekVal(val V)  { e.inner.SeekVal(val) }
func (e *TraceLeave[Outer, Inner, K, V, D]) RewindKeys()    { e.inner.RewindKeys() }
func (e *TraceLeave[Outer, Inner, K, V, D]) RewindVals()    { e.inner.RewindVals() }

// MapTimes invokes f with every outer time remapped into Inner scope via the
// refinement.
func (e *TraceLeave[Outer, Inner, K, V, D]) MapTimes(f func(t Inner, d D)) {
	e.inner.MapTimes(func(t Outer, d D) {
		f(e.refinement.ToInner(t), d)
	})
}
