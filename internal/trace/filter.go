package trace

// TraceFilter wraps a cursor and skips any (key, value) pair the predicate
// rejects, without materializing a filtered copy of the underlying trace.
// It backs a Collection's Filter operator when applied directly to an
// arrangement rather than to a stream of batches.
type TraceFilter[K any, V any, T any, D any] struct {
	inner Cursor[K, V, T, D]
	pred  func(key K, val V) bool
}

// NewTraceFilter wraps inner, presenting only (key, value) pairs for which
// pred returns true.
func NewTraceFilter[K any, V any, T any, D any](inner Cursor[K, V, T, D], pred func(key K, val V) bool) *TraceFilter[K, V, T, D] {
	tf := &TraceFilter[K, V, T, D]{inner: inner, pred: pred}
	tf.skipToValid()

	return tf
}

func (tf *TraceFilter[K, V, T, D]) skipToValid() {
	for tf.inner.KeyValid() {
		for tf.inner.ValValid() && !tf.pred(tf.inner.Key(), tf.inner.Val()) {
			tf.inner.StepVal()
		}

		if tf.inner.ValValid() {
			return
		}

		tf.inner.StepKey()
	}
}

func (tf *TraceFilter[K, V, T, D]) KeyValid() bool { return tf.inner.KeyValid() }
func (tf *TraceFilter[K, V, T, D]) Key() K         { return tf.inner.Key() }
func (tf *TraceFilter[K, V, T, D]) ValValid() bool { return tf.inner.ValValid() }
func (tf *TraceFilter[K, V, T, D]) Val() V         { return tf.inner.Val() }

func (tf *TraceFilter[K, V, T, D]) StepKey() {
	tf.inner.StepKey()
	tf.skipToValid()
}

func (tf *TraceFilter[K, V, T, D]) SeekKey(key K) {
	tf.inner.SeekKey(key)
	tf.skipToValid()
}

func (tf *TraceFilter[K, V, T, D]) StepVal() {
	tf.inner.StepVal()

	for tf.inner.ValValid() && !tf.pred(tf.inner.Key(), tf.inner.Val()) {
		tf.inner.StepVal()
	}
}

func (tf *TraceFilter[K, V, T, D]) SeekVal(val V) {
	tf.inner.SeekVal(val)

	for tf.inner.ValValid() && !tf.pred(tf.inner.Key(), tf.inner.Val()) {
		tf.inner.StepVal()
	}
}

func (tf *TraceFilter[K, V, T, D]) MapTimes(f func(t T, d D)) {
	tf.inner.MapTimes(f)
}

func (tf *TraceFilter[K, V, T, D]) RewindKeys() {
	tf.inner.RewindKeys()
	tf.skipToValid()
}

func (tf *TraceFilter[K, V, T, D]) RewindVals() {
	tf.inner.RewindVals()

	for tf.inner.ValValid() && !tf.pred(tf.inner.Key(), tf.inner.Val()) {
		tf.inner.StepVal()
	}
}
