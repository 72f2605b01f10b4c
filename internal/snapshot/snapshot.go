// Package snapshot implements the engine's checkpoint format: a versioned
// manifest plus an lz4-compressed payload, written atomically via
// write-temp-then-rename.
package snapshot

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/flowcore/differential/internal/diff"
	"github.com/flowcore/differential/internal/lattice"
	"github.com/flowcore/differential/internal/reduce"
)

// Compression selects the payload codec a Writer applies before writing.
type Compression string

const (
	CompressionLZ4  Compression = "lz4"
	CompressionNone Compression = "none"
)

const (
	manifestVersion = 1
	magic           = "RFSNAP1\n"
	filePerm        = 0o600
	tmpExtension    = ".tmp"
)

// Manifest is the versioned header embedded in every snapshot file ahead of
// its payload.
type Manifest struct {
	Version          int         `json:"version"`
	CreatedAt        string      `json:"created_at"`
	Compression      Compression `json:"compression"`
	UncompressedSize int         `json:"uncompressed_size"`
	Checksum         string      `json:"checksum"`
}

// Writer captures Reducer state into snapshot files under a configured
// compression policy.
type Writer struct {
	compression Compression
	now         func() time.Time
}

// NewWriter constructs a Writer. An empty compression defaults to lz4.
func NewWriter(compression Compression) *Writer {
	if compression == "" {
		compression = CompressionLZ4
	}

	return &Writer{compression: compression, now: time.Now}
}

// Capture encodes st (a Reducer's trace content, interesting set, and
// capability frontier — see reduce.State) and writes it atomically to path.
// A partially written file is never observable at path: the payload is
// built in memory, written to path+".tmp", fsynced, and renamed into place.
func Capture[K any, V any, T lattice.PartialOrder[T], D diff.Semigroup[D], O any](
	w *Writer, path string, st reduce.State[K, V, T, D, O],
) error {
	var buf bytes.Buffer

	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return fmt.Errorf("snapshot: encode state: %w", err)
	}

	raw := buf.Bytes()
	sum := sha256.Sum256(raw)

	compression := w.compression

	payload := raw
	if compression == CompressionLZ4 {
		compressed, ok := compressLZ4(raw)
		if ok {
			payload = compressed
		} else {
			compression = CompressionNone
		}
	}

	manifest := Manifest{
		Version:          manifestVersion,
		CreatedAt:        w.now().UTC().Format(time.RFC3339),
		Compression:      compression,
		UncompressedSize: len(raw),
		Checksum:         hex.EncodeToString(sum[:]),
	}

	manifestBytes, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("snapshot: marshal manifest: %w", err)
	}

	return writeAtomic(path, manifestBytes, payload)
}

// Reader restores Reducer state previously captured by a Writer.
type Reader struct{}

// NewReader constructs a Reader.
func NewReader() *Reader { return &Reader{} }

// Restore reads the snapshot file at path and decodes the reduce.State it
// holds. cfg's comparators and logic are never stored in the file — they
// are supplied fresh by the caller, same as reduce.Restore expects.
func Restore[K any, V any, T lattice.PartialOrder[T], D diff.Semigroup[D], O any](
	r *Reader, path string, cfg reduce.Config[K, V, T, D, O],
) (*reduce.Reducer[K, V, T, D, O], error) {
	st, err := ReadState[K, V, T, D, O](r, path)
	if err != nil {
		return nil, err
	}

	rd, err := reduce.Restore(st, cfg)
	if err != nil {
		return nil, fmt.Errorf("snapshot: restore reducer: %w", err)
	}

	return rd, nil
}

// ReadState decodes the reduce.State held in the snapshot file at path
// without reconstructing a live Reducer — the path cmd/reduceflow's explain
// and render commands use, since they only ever read a snapshot's trace
// content and never replay its Logic.
func ReadState[K any, V any, T lattice.PartialOrder[T], D diff.Semigroup[D], O any](
	_ *Reader, path string,
) (reduce.State[K, V, T, D, O], error) {
	var st reduce.State[K, V, T, D, O]

	manifest, payload, err := readSnapshotFile(path)
	if err != nil {
		return st, err
	}

	raw := payload

	if manifest.Compression == CompressionLZ4 {
		raw = make([]byte, manifest.UncompressedSize)

		n, uncompressErr := lz4.UncompressBlock(payload, raw)
		if uncompressErr != nil {
			return st, fmt.Errorf("snapshot: decompress payload: %w", uncompressErr)
		}

		raw = raw[:n]
	}

	sum := sha256.Sum256(raw)
	if hex.EncodeToString(sum[:]) != manifest.Checksum {
		return st, fmt.Errorf("snapshot: checksum mismatch: %w", ErrCorrupt)
	}

	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&st); err != nil {
		return st, fmt.Errorf("snapshot: decode state: %w", err)
	}

	return st, nil
}

// compressLZ4 block-compresses data via lz4.CompressBlock. ok is false when
// the block compressor reports the data did not shrink (CompressBlock
// returns 0 in that case), so the caller can fall back to storing it raw.
func compressLZ4(data []byte) ([]byte, bool) {
	compressed := make([]byte, lz4.CompressBlockBound(len(data)))

	n, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil || n == 0 {
		return nil, false
	}

	return compressed[:n], true
}

func writeAtomic(path string, manifestBytes, payload []byte) error {
	tmpPath := path + tmpExtension

	fd, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("snapshot: create temp file: %w", err)
	}

	if werr := writeFramed(fd, manifestBytes, payload); werr != nil {
		fd.Close()

		return werr
	}

	if err := fd.Sync(); err != nil {
		fd.Close()

		return fmt.Errorf("snapshot: sync temp file: %w", err)
	}

	if err := fd.Close(); err != nil {
		return fmt.Errorf("snapshot: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("snapshot: rename into place: %w", err)
	}

	return nil
}

func writeFramed(w io.Writer, manifestBytes, payload []byte) error {
	if _, err := io.WriteString(w, magic); err != nil {
		return fmt.Errorf("snapshot: write magic: %w", err)
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(manifestBytes)))

	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("snapshot: write manifest length: %w", err)
	}

	if _, err := w.Write(manifestBytes); err != nil {
		return fmt.Errorf("snapshot: write manifest: %w", err)
	}

	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("snapshot: write payload: %w", err)
	}

	return nil
}

func readSnapshotFile(path string) (Manifest, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, nil, fmt.Errorf("snapshot: read file: %w", err)
	}

	if len(data) < len(magic)+4 || string(data[:len(magic)]) != magic {
		return Manifest{}, nil, fmt.Errorf("snapshot: bad magic: %w", ErrCorrupt)
	}

	rest := data[len(magic):]
	manifestLen := binary.BigEndian.Uint32(rest[:4])
	rest = rest[4:]

	if uint32(len(rest)) < manifestLen {
		return Manifest{}, nil, fmt.Errorf("snapshot: truncated manifest: %w", ErrCorrupt)
	}

	var manifest Manifest
	if err := json.Unmarshal(rest[:manifestLen], &manifest); err != nil {
		return Manifest{}, nil, fmt.Errorf("snapshot: unmarshal manifest: %w", err)
	}

	payload := rest[manifestLen:]

	return manifest, payload, nil
}
