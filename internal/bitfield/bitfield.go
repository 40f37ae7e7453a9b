package bitfield

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned when a bit position is outside [0, Len).
	// Correctly parameterized callers never trigger it; seeing it means an
	// internal invariant was broken.
	ErrOutOfRange = errors.New("bit position out of range")

	// ErrLengthMismatch is returned when merging bit fields of different
	// lengths or restoring from a byte slice of the wrong size.
	ErrLengthMismatch = errors.New("bit field length mismatch")

	// ErrZeroLength is returned when constructing an empty bit field.
	ErrZeroLength = errors.New("bit field length must be positive")
)

// BitField is a fixed-length bit array. Bits are monotonically set-only:
// there is no clear operation, which is what makes Merge a pure union and
// shard-parallel construction safe.
//
// A BitField is not safe for concurrent writes. Once writes stop it may be
// shared read-only across any number of goroutines.
type BitField struct {
	words []uint64
	bits  uint64
	eng   engine
}

// New creates a BitField holding bits positions, all unset, using the given
// engine.
func New(bits uint64, eng Engine) (*BitField, error) {
	if bits == 0 {
		return nil, ErrZeroLength
	}
	return &BitField{
		words: make([]uint64, (bits+63)/64),
		bits:  bits,
		eng:   eng.impl(),
	}, nil
}

// FromBytes restores a BitField from the little-endian byte form produced by
// Bytes. The byte slice must be exactly the size implied by bits.
func FromBytes(b []byte, bits uint64, eng Engine) (*BitField, error) {
	bf, err := New(bits, eng)
	if err != nil {
		return nil, err
	}
	if uint64(len(b)) != bf.SizeBytes() {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrLengthMismatch, len(b), bf.SizeBytes())
	}
	for i := range bf.words {
		off := i * 8
		if off+8 <= len(b) {
			bf.words[i] = binary.LittleEndian.Uint64(b[off:])
			continue
		}
		// Tail shorter than a word: assemble byte-wise.
		var w uint64
		for j := 0; off+j < len(b); j++ {
			w |= uint64(b[off+j]) << (8 * j)
		}
		bf.words[i] = w
	}
	return bf, nil
}

// Len returns the number of bit positions.
func (b *BitField) Len() uint64 { return b.bits }

// SizeBytes returns the length of the serialized form.
func (b *BitField) SizeBytes() uint64 { return (b.bits + 7) / 8 }

// Set sets bit i.
func (b *BitField) Set(i uint64) error {
	if i >= b.bits {
		return fmt.Errorf("%w: %d >= %d", ErrOutOfRange, i, b.bits)
	}
	b.eng.set(b.words, i)
	return nil
}

// Test reports whether bit i is set.
func (b *BitField) Test(i uint64) (bool, error) {
	if i >= b.bits {
		return false, fmt.Errorf("%w: %d >= %d", ErrOutOfRange, i, b.bits)
	}
	return b.eng.test(b.words, i), nil
}

// Merge ORs other into b. Both fields must have identical length; the engine
// of b is retained.
func (b *BitField) Merge(other *BitField) error {
	if other.bits != b.bits {
		return fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, b.bits, other.bits)
	}
	b.eng.or(b.words, other.words)
	return nil
}

// Count returns the number of set bits.
func (b *BitField) Count() uint64 {
	return b.eng.count(b.words)
}

// Bytes returns the little-endian serialized form. The result is a copy;
// mutating it does not affect the BitField.
func (b *BitField) Bytes() []byte {
	out := make([]byte, b.SizeBytes())
	for i, w := range b.words {
		off := i * 8
		if off+8 <= len(out) {
			binary.LittleEndian.PutUint64(out[off:], w)
			continue
		}
		for j := 0; off+j < len(out); j++ {
			out[off+j] = byte(w >> (8 * j))
		}
	}
	return out
}

// Equal reports whether two bit fields have identical length and contents,
// regardless of engine.
func (b *BitField) Equal(other *BitField) bool {
	if b.bits != other.bits {
		return false
	}
	for i := range b.words {
		if b.words[i] != other.words[i] {
			return false
		}
	}
	return true
}
