package aegisbloom

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement it to integrate with monitoring systems; all methods must be
// safe for concurrent use.
type MetricsCollector interface {
	// RecordAdd is called after text or a source is inserted.
	// chunks is the number of chunks inserted, err is nil on success.
	RecordAdd(chunks int, duration time.Duration, err error)

	// RecordCheck is called after each document classification.
	RecordCheck(c Classification, duration time.Duration, err error)

	// RecordSave is called after each persistence write.
	RecordSave(bytes int, duration time.Duration, err error)

	// RecordLoad is called after each persistence read.
	RecordLoad(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAdd(int, time.Duration, error)              {}
func (NoopMetricsCollector) RecordCheck(Classification, time.Duration, error) {}
func (NoopMetricsCollector) RecordSave(int, time.Duration, error)             {}
func (NoopMetricsCollector) RecordLoad(time.Duration, error)                  {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and tests without external dependencies.
type BasicMetricsCollector struct {
	AddCount        atomic.Int64
	AddChunks       atomic.Int64
	AddErrors       atomic.Int64
	AddTotalNanos   atomic.Int64
	CheckCount      atomic.Int64
	CheckMaybe      atomic.Int64
	CheckErrors     atomic.Int64
	CheckTotalNanos atomic.Int64
	SaveCount       atomic.Int64
	SaveBytes       atomic.Int64
	SaveErrors      atomic.Int64
	LoadCount       atomic.Int64
	LoadErrors      atomic.Int64
}

// RecordAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAdd(chunks int, duration time.Duration, err error) {
	b.AddCount.Add(1)
	b.AddChunks.Add(int64(chunks))
	b.AddTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AddErrors.Add(1)
	}
}

// RecordCheck implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCheck(c Classification, duration time.Duration, err error) {
	b.CheckCount.Add(1)
	b.CheckTotalNanos.Add(duration.Nanoseconds())
	if c == MaybePresent {
		b.CheckMaybe.Add(1)
	}
	if err != nil {
		b.CheckErrors.Add(1)
	}
}

// RecordSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSave(bytes int, duration time.Duration, err error) {
	b.SaveCount.Add(1)
	b.SaveBytes.Add(int64(bytes))
	if err != nil {
		b.SaveErrors.Add(1)
	}
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(duration time.Duration, err error) {
	b.LoadCount.Add(1)
	if err != nil {
		b.LoadErrors.Add(1)
	}
}
