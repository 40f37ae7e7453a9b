// Package resource bounds what a multi-source build may consume: how many
// sources are read concurrently and how fast bytes leave the disk.
package resource

import (
	"context"
	"io"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits for a build.
type Config struct {
	// MaxConcurrentSources is the maximum number of sources read at once.
	// If 0, defaults to 1.
	MaxConcurrentSources int64

	// IOLimitBytesPerSec caps the aggregate read throughput across all
	// sources. If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller enforces build resource limits. A nil *Controller is valid and
// enforces nothing.
type Controller struct {
	cfg Config

	srcSem    *semaphore.Weighted
	ioLimiter *rate.Limiter

	bytesRead atomic.Int64
}

// NewController creates a controller for the given limits.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentSources <= 0 {
		cfg.MaxConcurrentSources = 1
	}

	c := &Controller{
		cfg:    cfg,
		srcSem: semaphore.NewWeighted(cfg.MaxConcurrentSources),
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// AcquireSource blocks until a source-read slot is free or ctx is canceled.
func (c *Controller) AcquireSource(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.srcSem.Acquire(ctx, 1)
}

// ReleaseSource returns a source-read slot.
func (c *Controller) ReleaseSource() {
	if c == nil {
		return
	}
	c.srcSem.Release(1)
}

// BytesRead returns the total bytes observed by limited readers.
func (c *Controller) BytesRead() int64 {
	if c == nil {
		return 0
	}
	return c.bytesRead.Load()
}

// LimitReader wraps r so reads count against the IO throughput budget.
// With no IO limit configured the reader is still wrapped for accounting.
func (c *Controller) LimitReader(ctx context.Context, r io.Reader) io.Reader {
	if c == nil {
		return r
	}
	return &limitedReader{ctx: ctx, r: r, c: c}
}

type limitedReader struct {
	ctx context.Context
	r   io.Reader
	c   *Controller
}

func (lr *limitedReader) Read(p []byte) (int, error) {
	if lim := lr.c.ioLimiter; lim != nil {
		// Cap the request at the limiter burst so WaitN cannot fail
		// permanently for large buffers.
		if burst := lim.Burst(); len(p) > burst {
			p = p[:burst]
		}
		if err := lim.WaitN(lr.ctx, len(p)); err != nil {
			return 0, err
		}
	}
	n, err := lr.r.Read(p)
	lr.c.bytesRead.Add(int64(n))
	return n, err
}
