package snapshot

import "errors"

// ErrCorrupt is returned when a snapshot file's framing or checksum does
// not match what Capture would have produced.
var ErrCorrupt = errors.New("snapshot: file is corrupt")
