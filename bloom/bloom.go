package bloom

import (
	"fmt"
	"math"

	"github.com/hupe1980/aegisbloom/internal/bitfield"
)

// Filter is the membership core: a Params value plus the bit field it
// configures. Bits are set-only, so merging two filters built from disjoint
// partitions is exactly equivalent to building one filter from the union.
//
// A Filter is exclusively owned while being written. After writes stop it is
// safe for any number of concurrent Test calls.
type Filter struct {
	params Params
	bits   *bitfield.BitField
	engine Engine
	items  uint64

	// scratch avoids a per-insert allocation for the k positions.
	scratch []uint64
}

// New creates an empty filter for the given parameters.
func New(params Params, engine Engine) (*Filter, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	bits, err := bitfield.New(params.M, engine.fieldEngine())
	if err != nil {
		return nil, err
	}
	return &Filter{
		params:  params,
		bits:    bits,
		engine:  engine,
		scratch: make([]uint64, 0, params.K),
	}, nil
}

// Restore rebuilds a filter from parameters and a raw bit array, as read
// back by the codec. items is the recorded insert count (zero if unknown).
func Restore(params Params, raw []byte, items uint64, engine Engine) (*Filter, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	bits, err := bitfield.FromBytes(raw, params.M, engine.fieldEngine())
	if err != nil {
		return nil, err
	}
	return &Filter{
		params:  params,
		bits:    bits,
		engine:  engine,
		items:   items,
		scratch: make([]uint64, 0, params.K),
	}, nil
}

// Params returns the filter's immutable configuration.
func (f *Filter) Params() Params { return f.params }

// Engine returns the bit engine the filter was constructed with.
func (f *Filter) Engine() Engine { return f.engine }

// Insert adds one chunk. Inserting the same chunk again is a no-op beyond
// the item counter: the k target bits are already set.
func (f *Filter) Insert(chunk []byte) error {
	f.scratch = positions(f.scratch[:0], chunk, f.params.M, f.params.K)
	for _, pos := range f.scratch {
		if err := f.bits.Set(pos); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
	}
	f.items++
	return nil
}

// Test reports whether chunk may have been inserted. A false result is
// definitive; a true result is wrong with probability bounded by the
// configured false positive rate.
func (f *Filter) Test(chunk []byte) (bool, error) {
	f.scratch = positions(f.scratch[:0], chunk, f.params.M, f.params.K)
	for _, pos := range f.scratch {
		ok, err := f.bits.Test(pos)
		if err != nil {
			return false, fmt.Errorf("test: %w", err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Merge ORs other into f. Both filters must share identical parameters;
// merging is commutative and associative, which is what makes partitioned
// parallel builds safe.
func (f *Filter) Merge(other *Filter) error {
	if other.params != f.params {
		return fmt.Errorf("%w: filters built with different parameters cannot be merged", ErrInvalidParameter)
	}
	if err := f.bits.Merge(other.bits); err != nil {
		return err
	}
	f.items += other.items
	return nil
}

// Items returns the number of Insert calls recorded.
func (f *Filter) Items() uint64 { return f.items }

// SetBits returns the number of set bits in the field.
func (f *Filter) SetBits() uint64 { return f.bits.Count() }

// EstimatedFPP estimates the current false positive probability from the
// fill ratio: (setBits/m)^k.
func (f *Filter) EstimatedFPP() float64 {
	fill := float64(f.bits.Count()) / float64(f.params.M)
	return math.Pow(fill, float64(f.params.K))
}

// BitBytes returns the serialized bit array (little-endian word order).
// The codec owns the framing around it.
func (f *Filter) BitBytes() []byte { return f.bits.Bytes() }

// BitsEqual reports whether two filters hold identical bit arrays.
func (f *Filter) BitsEqual(other *Filter) bool { return f.bits.Equal(other.bits) }
