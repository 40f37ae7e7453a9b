// Package codec implements the versioned on-disk representation of a
// membership filter.
//
// The format is a breaking-change boundary: other tooling depends on these
// bytes, so the layout is bit-exact and never changed in place - new layouts
// get a new version number, and unknown versions are rejected on load
// rather than guessed at.
//
// Layout (all integers big-endian):
//
//	[magic "AGBF":4][version:u16][m:u64][k:u32][chunk_size:u32][stride:u32]
//	[threshold:u32][fp_rate:f64][expected_items:u64][bitarray_len:u64]
//	[gzip-compressed raw bit array, exactly bitarray_len bytes once inflated]
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/gzip"

	"github.com/hupe1980/aegisbloom/bloom"
)

// FormatVersion is the current serialization version.
const FormatVersion uint16 = 1

// headerSize is the fixed byte length of the uncompressed header.
const headerSize = 4 + 2 + 8 + 4 + 4 + 4 + 4 + 8 + 8 + 8

var magic = [4]byte{'A', 'G', 'B', 'F'}

var (
	// ErrCorrupt is wrapped by every decode failure. A failed load never
	// degrades to a partially valid or empty filter.
	ErrCorrupt = errors.New("corrupt filter data")

	// ErrBadMagic indicates the input does not start with the format magic.
	ErrBadMagic = fmt.Errorf("%w: bad magic", ErrCorrupt)

	// ErrUnknownVersion indicates a version tag this build cannot read.
	ErrUnknownVersion = fmt.Errorf("%w: unknown format version", ErrCorrupt)

	// ErrLengthMismatch indicates the declared bit array length disagrees
	// with the decompressed payload.
	ErrLengthMismatch = fmt.Errorf("%w: bit array length mismatch", ErrCorrupt)
)

// Encode serializes the filter to its versioned byte form.
func Encode(f *bloom.Filter) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeTo(&buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo writes the versioned byte form to w.
func EncodeTo(w io.Writer, f *bloom.Filter) error {
	p := f.Params()
	raw := f.BitBytes()

	hdr := make([]byte, headerSize)
	copy(hdr[0:4], magic[:])
	binary.BigEndian.PutUint16(hdr[4:6], FormatVersion)
	binary.BigEndian.PutUint64(hdr[6:14], p.M)
	binary.BigEndian.PutUint32(hdr[14:18], p.K)
	binary.BigEndian.PutUint32(hdr[18:22], p.ChunkSize)
	binary.BigEndian.PutUint32(hdr[22:26], p.Stride)
	binary.BigEndian.PutUint32(hdr[26:30], p.Threshold)
	binary.BigEndian.PutUint64(hdr[30:38], math.Float64bits(p.FPRate))
	binary.BigEndian.PutUint64(hdr[38:46], p.ExpectedItems)
	binary.BigEndian.PutUint64(hdr[46:54], uint64(len(raw)))
	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	zw := gzip.NewWriter(w)
	if _, err := zw.Write(raw); err != nil {
		return fmt.Errorf("compress bit array: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress bit array: %w", err)
	}
	return nil
}

// Decode deserializes a filter, constructing it on the given engine.
func Decode(data []byte, engine bloom.Engine) (*bloom.Filter, error) {
	return DecodeFrom(bytes.NewReader(data), engine)
}

// DecodeFrom reads and deserializes a filter from r.
//
// Any structural problem - short input, bad magic, unknown version,
// parameters that cannot describe a filter, payload length disagreement -
// fails with an error satisfying errors.Is(err, ErrCorrupt).
func DecodeFrom(r io.Reader, engine bloom.Engine) (*bloom.Filter, error) {
	hdr := make([]byte, headerSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("%w: truncated header: %w", ErrCorrupt, err)
	}
	if !bytes.Equal(hdr[0:4], magic[:]) {
		return nil, ErrBadMagic
	}
	if v := binary.BigEndian.Uint16(hdr[4:6]); v != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, v)
	}

	p := bloom.Params{
		M:             binary.BigEndian.Uint64(hdr[6:14]),
		K:             binary.BigEndian.Uint32(hdr[14:18]),
		ChunkSize:     binary.BigEndian.Uint32(hdr[18:22]),
		Stride:        binary.BigEndian.Uint32(hdr[22:26]),
		Threshold:     binary.BigEndian.Uint32(hdr[26:30]),
		FPRate:        math.Float64frombits(binary.BigEndian.Uint64(hdr[30:38])),
		ExpectedItems: binary.BigEndian.Uint64(hdr[38:46]),
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	declaredLen := binary.BigEndian.Uint64(hdr[46:54])
	if declaredLen != p.SizeBytes() {
		return nil, fmt.Errorf("%w: declared %d bytes for m=%d", ErrLengthMismatch, declaredLen, p.M)
	}

	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: bad compressed payload: %w", ErrCorrupt, err)
	}
	defer zr.Close()

	raw := make([]byte, declaredLen)
	if _, err := io.ReadFull(zr, raw); err != nil {
		return nil, fmt.Errorf("%w: short payload: %w", ErrLengthMismatch, err)
	}
	// The payload must end exactly where the header said it would.
	var extra [1]byte
	if n, _ := zr.Read(extra[:]); n != 0 {
		return nil, fmt.Errorf("%w: payload longer than declared", ErrLengthMismatch)
	}

	f, err := bloom.Restore(p, raw, 0, engine)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return f, nil
}
