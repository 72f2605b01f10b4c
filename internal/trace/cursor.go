package trace

// Cursor walks a Batch or Trace in key-then-value order, exposing a
// validity/step/seek contract.
type Cursor[K any, V any, T any, D any] interface {
	// KeyValid reports whether the cursor currently sits on a key.
	KeyValid() bool
	// Key returns the current key. Only valid when KeyValid.
	Key() K
	// ValValid reports whether the cursor currently sits on a value within
	// the current key.
	ValValid() bool
	// Val returns the current value. Only valid when ValValid.
	Val() V
	// StepKey advances to the next key, resetting the value position.
	StepKey()
	// SeekKey advances to the first key >= key.
	SeekKey(key K)
	// StepVal advances to the next value within the current key.
	StepVal()
	// SeekVal advances to the first value >= val within the current key.
	SeekVal(val V)
	// MapTimes invokes f once per (time, diff) recorded against the current
	// (key, value).
	MapTimes(f func(t T, d D))
	// RewindKeys returns the cursor to the first key.
	RewindKeys()
	// RewindVals returns the cursor to the first value of the current key.
	RewindVals()
}
