package bloom

import (
	"errors"
	"fmt"
	"math"
)

// Defaults used when the caller does not override them.
const (
	DefaultChunkSize     = 512
	DefaultThreshold     = 3
	DefaultFPRate        = 0.01
	DefaultExpectedItems = 10_000_000
)

// ErrInvalidParameter is wrapped by every parameter validation failure.
var ErrInvalidParameter = errors.New("invalid parameter")

// Params is the immutable configuration of a filter. All fields are fixed
// for the lifetime of the structure: M and the hash derivation depend on
// them, so they cannot change once chunks have been inserted.
type Params struct {
	// M is the bit array length, always a multiple of 64.
	M uint64
	// K is the number of bit positions derived per chunk.
	K uint32
	// ChunkSize is the chunk length in bytes.
	ChunkSize uint32
	// Stride is the distance in bytes between consecutive chunk starts.
	// Stride == ChunkSize means non-overlapping chunks.
	Stride uint32
	// Threshold is the number of consecutive matching chunks required to
	// classify a document as maybe-present.
	Threshold uint32
	// FPRate is the target false positive rate used to derive M and K.
	FPRate float64
	// ExpectedItems is the item count M and K were derived for.
	ExpectedItems uint64
}

// DeriveParams computes filter parameters from an expected item count and a
// target false positive rate using the standard relations
//
//	m = ceil(-n*ln(p) / ln(2)^2)
//	k = round((m/n) * ln(2))
//
// m is rounded up to a multiple of 64 for the word-packed bit field.
// Zero-valued knobs fall back to the package defaults.
func DeriveParams(expectedItems uint64, fpRate float64, chunkSize, stride, threshold uint32) (Params, error) {
	if expectedItems == 0 {
		expectedItems = DefaultExpectedItems
	}
	if fpRate == 0 {
		fpRate = DefaultFPRate
	}
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if stride == 0 {
		stride = chunkSize
	}
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	p := Params{
		ChunkSize:     chunkSize,
		Stride:        stride,
		Threshold:     threshold,
		FPRate:        fpRate,
		ExpectedItems: expectedItems,
	}
	if err := p.validateKnobs(); err != nil {
		return Params{}, err
	}

	n := float64(expectedItems)
	ln2 := math.Ln2
	m := math.Ceil(-n * math.Log(fpRate) / (ln2 * ln2))
	p.M = (uint64(m) + 63) &^ 63

	k := math.Round(float64(p.M) / n * ln2)
	if k < 1 {
		k = 1
	}
	p.K = uint32(k)

	return p, nil
}

// Validate checks the full parameter set, including the derived M and K.
// It is used on the load path, where M and K come from the wire rather than
// from DeriveParams.
func (p Params) Validate() error {
	if err := p.validateKnobs(); err != nil {
		return err
	}
	if p.M == 0 {
		return fmt.Errorf("%w: bit array length must be positive", ErrInvalidParameter)
	}
	if p.M%64 != 0 {
		return fmt.Errorf("%w: bit array length must be word aligned, got %d", ErrInvalidParameter, p.M)
	}
	if p.K == 0 {
		return fmt.Errorf("%w: hash count must be positive", ErrInvalidParameter)
	}
	return nil
}

func (p Params) validateKnobs() error {
	if p.ChunkSize == 0 {
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidParameter)
	}
	if p.Stride == 0 || p.Stride > p.ChunkSize {
		return fmt.Errorf("%w: stride must be in [1, chunk size], got %d", ErrInvalidParameter, p.Stride)
	}
	if p.Threshold < 1 {
		return fmt.Errorf("%w: consecutive threshold must be at least 1", ErrInvalidParameter)
	}
	if p.FPRate <= 0 || p.FPRate >= 1 {
		return fmt.Errorf("%w: false positive rate must be in (0, 1), got %g", ErrInvalidParameter, p.FPRate)
	}
	if p.ExpectedItems == 0 {
		return fmt.Errorf("%w: expected items must be positive", ErrInvalidParameter)
	}
	return nil
}

// SizeBytes returns the raw (uncompressed) bit array size.
func (p Params) SizeBytes() uint64 { return p.M / 8 }
