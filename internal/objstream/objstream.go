// Package objstream implements the object-stream I/O boundary the executor
// uses to pass batches of examples between phases: an iterator-like
// Reader (Next/Close/SizeIfKnown/Slice) with an in-memory implementation
// for ordinary runs and a spill-to-disk implementation for BATCH
// preparer input buffering once it exceeds a configured size threshold.
// The in-memory store is a mutex-guarded slice-of-examples; the spill
// format is one file per writer, using encoding/gob instead of json since
// spill segments hold arbitrary Go values with no existing json-tag
// contract to honor.
package objstream

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"os"
	"sync"
)

func init() {
	// gob requires every concrete type that will ever cross an interface{}
	// boundary to be registered. The executor's own example values are
	// almost always one of these primitive kinds; callers whose
	// placeholders carry custom struct types must gob.Register them too
	// before spilling, the same way a caller of encoding/gob always must.
	for _, v := range []any{
		int(0), int32(0), int64(0), float32(0), float64(0),
		"", true, []byte(nil),
	} {
		gob.Register(v)
	}
}

// Reader is a restartable iterator over a sequence of examples, each
// represented as []any (the example's resolved values for whatever set of
// parents the caller cares about).
type Reader interface {
	// Next advances to the next example and returns it, or returns
	// (nil, false) once exhausted.
	Next() ([]any, bool)
	// Rewind resets the reader to its first example, enabling a BATCH
	// preparer to make a second pass.
	Rewind() error
	// SizeIfKnown returns the number of examples and true if the count is
	// known up front (always true for these implementations), or (0,
	// false) when it is not.
	SizeIfKnown() (int, bool)
	// Slice returns a Reader over examples [start, end).
	Slice(start, end int) (Reader, error)
	// Close releases any resources (temp files) the reader holds.
	Close() error
}

// Writer accumulates examples, spilling to disk once the configured
// threshold is exceeded, and yields a Reader over everything written.
type Writer struct {
	mu             sync.Mutex
	spillThreshold int64
	memory         [][]any
	memoryBytes    int64
	spillPath      string
	spillFile      *os.File
	spillWriter    *bufio.Writer
	spillEncoder   *gob.Encoder
	spilled        bool
	count          int
}

// NewWriter returns a Writer that spills to a temp file once the
// accumulated examples' estimated in-memory size exceeds spillThresholdBytes.
// A non-positive threshold disables spilling (everything stays in memory).
func NewWriter(spillThresholdBytes int64) *Writer {
	return &Writer{spillThreshold: spillThresholdBytes}
}

// Write appends one example.
func (w *Writer) Write(values []any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.count++
	if w.spilled {
		return w.spillEncoder.Encode(values)
	}

	w.memory = append(w.memory, values)
	w.memoryBytes += estimateSize(values)

	if w.spillThreshold > 0 && w.memoryBytes > w.spillThreshold {
		return w.spillToDisk()
	}
	return nil
}

func (w *Writer) spillToDisk() error {
	f, err := os.CreateTemp("", "dagml-objstream-*.gob")
	if err != nil {
		return fmt.Errorf("dagml/objstream: creating spill file: %w", err)
	}
	bw := bufio.NewWriter(f)
	enc := gob.NewEncoder(bw)
	for _, values := range w.memory {
		if err := enc.Encode(values); err != nil {
			return fmt.Errorf("dagml/objstream: spilling to disk: %w", err)
		}
	}
	w.spillPath = f.Name()
	w.spillFile = f
	w.spillWriter = bw
	w.spillEncoder = enc
	w.spilled = true
	w.memory = nil
	return nil
}

// Reader returns a Reader over everything written so far. If the writer
// spilled, the returned reader owns the temp file and Close removes it.
func (w *Writer) Reader() (Reader, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.spilled {
		out := make([][]any, len(w.memory))
		copy(out, w.memory)
		return &memoryReader{examples: out}, nil
	}

	if err := w.spillWriter.Flush(); err != nil {
		return nil, fmt.Errorf("dagml/objstream: flushing spill file: %w", err)
	}
	if err := w.spillFile.Sync(); err != nil {
		return nil, fmt.Errorf("dagml/objstream: syncing spill file: %w", err)
	}
	return newSpillReader(w.spillPath)
}

func estimateSize(values []any) int64 {
	// A coarse per-value estimate is enough to trigger spilling at roughly
	// the right scale; exact accounting would require reflecting into
	// every value's representation, which is unnecessary for a threshold.
	return int64(len(values)) * 64
}

type memoryReader struct {
	examples [][]any
	pos      int
}

func (r *memoryReader) Next() ([]any, bool) {
	if r.pos >= len(r.examples) {
		return nil, false
	}
	v := r.examples[r.pos]
	r.pos++
	return v, true
}

func (r *memoryReader) Rewind() error { r.pos = 0; return nil }

func (r *memoryReader) SizeIfKnown() (int, bool) { return len(r.examples), true }

func (r *memoryReader) Slice(start, end int) (Reader, error) {
	if start < 0 || end > len(r.examples) || start > end {
		return nil, fmt.Errorf("dagml/objstream: slice [%d:%d) out of range for %d examples", start, end, len(r.examples))
	}
	sub := make([][]any, end-start)
	copy(sub, r.examples[start:end])
	return &memoryReader{examples: sub}, nil
}

func (r *memoryReader) Close() error { return nil }

// spillReader reads a gob-encoded segment file written by Writer, decoding
// the whole file into memory once on construction (Rewind only resets the
// read position) -- the
// spill threshold bounds this module's input buffering, not its output
// reading; it loads the whole file back in on read, never streams it.
type spillReader struct {
	path     string
	examples [][]any
	pos      int
}

func newSpillReader(path string) (*spillReader, error) {
	r := &spillReader{path: path}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *spillReader) load() error {
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("dagml/objstream: opening spill file: %w", err)
	}
	defer f.Close()

	dec := gob.NewDecoder(bufio.NewReader(f))
	r.examples = r.examples[:0]
	for {
		var values []any
		if err := dec.Decode(&values); err != nil {
			break
		}
		r.examples = append(r.examples, values)
	}
	r.pos = 0
	return nil
}

func (r *spillReader) Next() ([]any, bool) {
	if r.pos >= len(r.examples) {
		return nil, false
	}
	v := r.examples[r.pos]
	r.pos++
	return v, true
}

func (r *spillReader) Rewind() error { r.pos = 0; return nil }

func (r *spillReader) SizeIfKnown() (int, bool) { return len(r.examples), true }

func (r *spillReader) Slice(start, end int) (Reader, error) {
	if start < 0 || end > len(r.examples) || start > end {
		return nil, fmt.Errorf("dagml/objstream: slice [%d:%d) out of range for %d examples", start, end, len(r.examples))
	}
	sub := make([][]any, end-start)
	copy(sub, r.examples[start:end])
	return &memoryReader{examples: sub}, nil
}

func (r *spillReader) Close() error {
	return os.Remove(r.path)
}
