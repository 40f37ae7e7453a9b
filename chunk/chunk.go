// Package chunk splits byte streams into fixed-size, optionally overlapping
// chunks, each tagged with its zero-based sequence index.
//
// Chunking is a pure transform: identical input bytes and identical
// (size, stride) always produce the identical chunk sequence, which is what
// keeps build-time and query-time hashing aligned.
package chunk

import (
	"fmt"
	"io"
	"iter"
)

// PadByte is the sentinel used to pad a trailing partial chunk to the full
// chunk size. Hashing a padded chunk instead of a shorter one keeps the
// trailing chunk's hash stable across rebuilds regardless of how many bytes
// the tail happens to hold.
const PadByte = 0x00

// readBlock is the size of a single source read in ScanReader.
const readBlock = 64 * 1024

// Chunker produces chunk sequences for one (size, stride) configuration.
// The zero value is not usable; construct with New.
type Chunker struct {
	size   int
	stride int
}

// New creates a Chunker. stride must be in [1, size]; stride == size means
// non-overlapping chunks, smaller strides overlap consecutive chunks to
// increase sensitivity to small edits.
func New(size, stride uint32) (Chunker, error) {
	if size == 0 {
		return Chunker{}, fmt.Errorf("chunk size must be positive")
	}
	if stride == 0 || stride > size {
		return Chunker{}, fmt.Errorf("stride must be in [1, %d], got %d", size, stride)
	}
	return Chunker{size: int(size), stride: int(stride)}, nil
}

// Size returns the chunk size in bytes.
func (c Chunker) Size() int { return c.size }

// Stride returns the distance between consecutive chunk starts.
func (c Chunker) Stride() int { return c.stride }

// Count returns the number of chunks produced for an input of n bytes.
func (c Chunker) Count(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + c.stride - 1) / c.stride
}

// Chunks returns an iterator over (index, chunk) pairs for in-memory data.
// Full chunks alias the input; the final partial chunk (if any) is yielded
// as a padded copy. Chunks are only valid during the yield.
func (c Chunker) Chunks(data []byte) iter.Seq2[int, []byte] {
	return func(yield func(int, []byte) bool) {
		var pad []byte
		index := 0
		for off := 0; off < len(data); off += c.stride {
			end := off + c.size
			if end <= len(data) {
				if !yield(index, data[off:end]) {
					return
				}
			} else {
				if pad == nil {
					pad = make([]byte, c.size)
				}
				n := copy(pad, data[off:])
				clear(pad[n:])
				if !yield(index, pad) {
					return
				}
			}
			index++
		}
	}
}

// ScanReader streams r through fn one chunk at a time, holding at most a
// chunk-sized sliding window plus one read block in memory. The chunk slice
// passed to fn is reused between calls; fn must copy it to retain it.
//
// A non-nil error from fn aborts the scan and is returned unchanged.
func (c Chunker) ScanReader(r io.Reader, fn func(index int, chunk []byte) error) error {
	window := make([]byte, 0, c.size+readBlock)
	block := make([]byte, readBlock)
	pad := make([]byte, c.size)
	index := 0

	advance := func() {
		if c.stride >= len(window) {
			window = window[:0]
			return
		}
		n := copy(window, window[c.stride:])
		window = window[:n]
	}

	// flush emits every chunk whose window is complete. At EOF it also
	// drains the remaining partial windows, padded with the sentinel; with
	// stride < size more than one trailing chunk can be partial.
	flush := func(final bool) error {
		for len(window) > 0 {
			var cur []byte
			switch {
			case len(window) >= c.size:
				cur = window[:c.size]
			case final:
				n := copy(pad, window)
				clear(pad[n:])
				cur = pad
			default:
				return nil
			}
			if err := fn(index, cur); err != nil {
				return err
			}
			index++
			advance()
		}
		return nil
	}

	for {
		n, err := r.Read(block)
		if n > 0 {
			window = append(window, block[:n]...)
			if err2 := flush(false); err2 != nil {
				return err2
			}
		}
		if err == io.EOF {
			return flush(true)
		}
		if err != nil {
			return err
		}
	}
}
