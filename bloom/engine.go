package bloom

import "github.com/hupe1980/aegisbloom/internal/bitfield"

// Engine selects the bit-manipulation implementation backing a filter.
// Both engines produce bit-identical filters for identical inputs; the
// choice is a performance knob, fixed at construction time rather than
// consulted per call.
type Engine int

const (
	// EngineOptimized uses word-at-a-time operations and hardware popcount.
	EngineOptimized Engine = iota
	// EngineReference is the portable baseline implementation. It exists so
	// the optimized engine can be cross-checked in-process, not as a
	// fallback selected at call time.
	EngineReference
)

// String implements fmt.Stringer.
func (e Engine) String() string {
	if e == EngineReference {
		return "reference"
	}
	return "optimized"
}

func (e Engine) fieldEngine() bitfield.Engine {
	if e == EngineReference {
		return bitfield.EngineReference
	}
	return bitfield.EngineOptimized
}
