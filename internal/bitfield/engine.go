package bitfield

import "math/bits"

// Engine selects the bit-manipulation implementation. The choice affects
// speed only; both engines are bit-identical and the serialized form does
// not record which one produced it.
type Engine int

const (
	// EngineOptimized operates a word at a time and uses hardware popcount.
	EngineOptimized Engine = iota
	// EngineReference is a portable bit-at-a-time implementation kept as the
	// correctness baseline for the optimized engine.
	EngineReference
)

// String implements fmt.Stringer.
func (e Engine) String() string {
	switch e {
	case EngineOptimized:
		return "optimized"
	case EngineReference:
		return "reference"
	default:
		return "unknown"
	}
}

func (e Engine) impl() engine {
	if e == EngineReference {
		return referenceEngine{}
	}
	return optimizedEngine{}
}

type engine interface {
	set(words []uint64, i uint64)
	test(words []uint64, i uint64) bool
	or(dst, src []uint64)
	count(words []uint64) uint64
}

type optimizedEngine struct{}

func (optimizedEngine) set(words []uint64, i uint64) {
	words[i>>6] |= 1 << (i & 63)
}

func (optimizedEngine) test(words []uint64, i uint64) bool {
	return words[i>>6]&(1<<(i&63)) != 0
}

func (optimizedEngine) or(dst, src []uint64) {
	n := len(dst) &^ 3
	for i := 0; i < n; i += 4 {
		dst[i] |= src[i]
		dst[i+1] |= src[i+1]
		dst[i+2] |= src[i+2]
		dst[i+3] |= src[i+3]
	}
	for i := n; i < len(dst); i++ {
		dst[i] |= src[i]
	}
}

func (optimizedEngine) count(words []uint64) uint64 {
	var c uint64
	for _, w := range words {
		c += uint64(bits.OnesCount64(w))
	}
	return c
}

type referenceEngine struct{}

func (referenceEngine) set(words []uint64, i uint64) {
	word := i / 64
	bit := i % 64
	words[word] = words[word] | (uint64(1) << bit)
}

func (referenceEngine) test(words []uint64, i uint64) bool {
	word := i / 64
	bit := i % 64
	return (words[word]>>bit)&1 == 1
}

func (referenceEngine) or(dst, src []uint64) {
	for i := range dst {
		dst[i] = dst[i] | src[i]
	}
}

func (referenceEngine) count(words []uint64) uint64 {
	var c uint64
	for _, w := range words {
		for w != 0 {
			w &= w - 1
			c++
		}
	}
	return c
}
