package aegisbloom

import (
	"runtime"

	"github.com/hupe1980/aegisbloom/bloom"
	"github.com/hupe1980/aegisbloom/internal/spill"
	"github.com/hupe1980/aegisbloom/resource"
)

// Engine selects the bit-manipulation implementation. Both engines are
// bit-identical for a given input and parameter set; see bloom.Engine.
type Engine = bloom.Engine

const (
	// EngineOptimized is the default word-at-a-time engine.
	EngineOptimized = bloom.EngineOptimized
	// EngineReference is the portable baseline engine.
	EngineReference = bloom.EngineReference
)

// SpillCompression selects how build shards are compressed when spilled to
// disk between the build and merge phases.
type SpillCompression int

const (
	// SpillLZ4 favors speed.
	SpillLZ4 SpillCompression = iota
	// SpillZSTD favors ratio.
	SpillZSTD
	// SpillNone disables compression of spill files.
	SpillNone
)

func (c SpillCompression) internal() spill.Compression {
	switch c {
	case SpillZSTD:
		return spill.ZSTD
	case SpillNone:
		return spill.None
	default:
		return spill.LZ4
	}
}

type options struct {
	engine     Engine
	logger     *Logger
	metrics    MetricsCollector
	workers    int
	controller *resource.Controller
	spillDir   string
	spillComp  SpillCompression
}

func defaultOptions() options {
	return options{
		engine:  EngineOptimized,
		logger:  NoopLogger(),
		metrics: NoopMetricsCollector{},
		workers: runtime.GOMAXPROCS(0),
	}
}

// Option configures filter construction and load behavior.
//
// The engine toggle is deliberately an explicit option rather than ambient
// process state, so tests can run both engines side by side.
type Option func(*options)

// WithEngine selects the bit engine for the structure being built or
// loaded. The choice is fixed at construction; it is never consulted per
// call.
func WithEngine(e Engine) Option {
	return func(o *options) {
		o.engine = e
	}
}

// WithReferenceEngine forces the portable reference engine. Shorthand for
// WithEngine(EngineReference), mirroring the builder knob.
func WithReferenceEngine() Option {
	return func(o *options) {
		o.engine = EngineReference
	}
}

// WithLogger sets the structured logger. A nil logger silences output.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithWorkers sets the number of concurrent shard builders used by
// BuildFromSources and the fan-out width of CheckBatch.
// Defaults to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithResourceController bounds source-read concurrency and IO throughput
// during builds. nil removes the bound.
func WithResourceController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}

// WithSpill makes each build worker write its finished shard to dir as a
// compressed scratch file instead of holding it in memory until the merge.
// Peak memory drops from workers+1 bit arrays to 2.
func WithSpill(dir string, c SpillCompression) Option {
	return func(o *options) {
		o.spillDir = dir
		o.spillComp = c
	}
}
