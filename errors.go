package aegisbloom

import (
	"errors"
	"fmt"

	"github.com/hupe1980/aegisbloom/bloom"
	"github.com/hupe1980/aegisbloom/codec"
	"github.com/hupe1980/aegisbloom/internal/bitfield"
)

var (
	// ErrInvalidParameter is returned before any work starts when a
	// configuration value cannot describe a filter (threshold < 1,
	// stride > chunk size, rate outside (0,1), ...).
	ErrInvalidParameter = bloom.ErrInvalidParameter

	// ErrCorruptFilter is returned when persisted bytes cannot be decoded.
	// A failed load never yields a partially valid or empty filter.
	ErrCorruptFilter = codec.ErrCorrupt

	// ErrBoundsViolation indicates a hash position outside the bit array.
	// It marks a broken internal invariant, not a recoverable condition.
	ErrBoundsViolation = bitfield.ErrOutOfRange

	// ErrNoSources is returned when a build ends with zero usable sources,
	// either because none were given or because every one failed to read.
	ErrNoSources = errors.New("no usable sources")
)

// SourceError records the failure of a single input source. During a build
// or a batch check it is reported alongside the successes instead of
// aborting the remaining work.
//
// The underlying IO error is available via errors.Unwrap.
type SourceError struct {
	// ID identifies the failed source (typically its path).
	ID    string
	cause error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %q: %v", e.ID, e.cause)
}

func (e *SourceError) Unwrap() error { return e.cause }
