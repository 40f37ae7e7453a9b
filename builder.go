package aegisbloom

import (
	"github.com/hupe1980/aegisbloom/bloom"
	"github.com/hupe1980/aegisbloom/resource"
)

// New creates a filter builder with the package defaults: 10M expected
// items, 1% false positive rate, 512-byte non-overlapping chunks, and a
// consecutive-match threshold of 3.
//
// The builder is immutable - each method returns a new builder with the
// updated configuration - so partially configured builders can be shared
// freely.
//
// Example:
//
//	f, err := aegisbloom.New().
//	    ExpectedItems(5_000_000).
//	    FalsePositiveRate(0.001).
//	    ChunkSize(512).
//	    Build()
func New() Builder {
	return Builder{
		fpRate: bloom.DefaultFPRate,
	}
}

// Builder is an immutable fluent builder for membership filters.
type Builder struct {
	expectedItems uint64
	fpRate        float64
	chunkSize     uint32
	stride        uint32
	threshold     uint32
	engine        Engine
	logger        *Logger
	metrics       MetricsCollector
	workers       int
	controller    *resource.Controller
	spillDir      string
	spillComp     SpillCompression
	spillSet      bool
}

// ExpectedItems sets the chunk count the bit array is sized for.
// Default: 10,000,000. Oversizing wastes memory; undersizing raises the
// effective false positive rate above the target.
func (b Builder) ExpectedItems(n uint64) Builder {
	b.expectedItems = n
	return b
}

// FalsePositiveRate sets the target false positive rate in (0, 1).
// Default: 0.01.
func (b Builder) FalsePositiveRate(p float64) Builder {
	b.fpRate = p
	return b
}

// ChunkSize sets the chunk size in bytes. Default: 512.
func (b Builder) ChunkSize(s uint32) Builder {
	b.chunkSize = s
	return b
}

// Stride sets the distance between consecutive chunk starts. Values below
// the chunk size produce overlapping chunks, which improves sensitivity to
// small edits at the cost of more insertions. Default: the chunk size
// (non-overlapping).
func (b Builder) Stride(s uint32) Builder {
	b.stride = s
	return b
}

// ConsecutiveChunks sets how many adjacent chunks must all test positive
// before a document classifies as MaybePresent. Default: 3. With target
// rate p the chance of an accidental classification is roughly p^t.
func (b Builder) ConsecutiveChunks(t uint32) Builder {
	b.threshold = t
	return b
}

// Engine selects the bit engine. Default: EngineOptimized.
func (b Builder) Engine(e Engine) Builder {
	b.engine = e
	return b
}

// ReferenceEngine forces the portable reference engine.
func (b Builder) ReferenceEngine() Builder {
	b.engine = EngineReference
	return b
}

// Logger sets the structured logger for operation tracing.
func (b Builder) Logger(l *Logger) Builder {
	b.logger = l
	return b
}

// Metrics sets the metrics collector.
func (b Builder) Metrics(mc MetricsCollector) Builder {
	b.metrics = mc
	return b
}

// Workers sets the shard-build parallelism for BuildFromSources.
// Default: GOMAXPROCS.
func (b Builder) Workers(n int) Builder {
	b.workers = n
	return b
}

// Resource bounds source-read concurrency and IO throughput during builds.
func (b Builder) Resource(c *resource.Controller) Builder {
	b.controller = c
	return b
}

// SpillTo makes build workers spill finished shards to dir as compressed
// scratch files, trading scratch disk for peak memory during the merge.
func (b Builder) SpillTo(dir string, c SpillCompression) Builder {
	b.spillDir = dir
	b.spillComp = c
	b.spillSet = true
	return b
}

// Params derives the full parameter set this builder describes.
func (b Builder) Params() (bloom.Params, error) {
	return bloom.DeriveParams(b.expectedItems, b.fpRate, b.chunkSize, b.stride, b.threshold)
}

// Build creates an empty filter. Parameter validation happens here, before
// any work: an invalid configuration never produces a partially usable
// filter.
func (b Builder) Build() (*Filter, error) {
	params, err := b.Params()
	if err != nil {
		return nil, err
	}
	return newFilter(params, b.options())
}

// MustBuild creates the filter, panicking on error.
func (b Builder) MustBuild() *Filter {
	f, err := b.Build()
	if err != nil {
		panic(err)
	}
	return f
}

func (b Builder) options() options {
	o := defaultOptions()
	o.engine = b.engine
	if b.logger != nil {
		o.logger = b.logger
	}
	if b.metrics != nil {
		o.metrics = b.metrics
	}
	if b.workers > 0 {
		o.workers = b.workers
	}
	o.controller = b.controller
	if b.spillSet {
		o.spillDir = b.spillDir
		o.spillComp = b.spillComp
	}
	return o
}
