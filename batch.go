package aegisbloom

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/aegisbloom/bloom"
	"github.com/hupe1980/aegisbloom/chunk"
	"github.com/hupe1980/aegisbloom/internal/spill"
)

// BuildReport summarizes a multi-source build. Per-source read failures are
// reported here instead of failing the build, as long as at least one
// source was usable.
type BuildReport struct {
	// Sources is the number of sources successfully inserted.
	Sources int
	// Chunks is the total number of chunks inserted.
	Chunks uint64
	// SourceErrors lists the sources that could not be read.
	SourceErrors []*SourceError
}

// BuildFromSources builds a filter from many inputs at once.
//
// Each worker streams sources through its own shard filter, so no source is
// ever materialized in memory and the only configuration-proportional cost
// is one bit array per worker (or two in total with SpillTo). Shards are
// merged by bitwise union at the end; union is commutative and associative,
// so the result is identical to a sequential single-filter build.
//
// An unreadable source is recorded in the report and skipped. The build
// fails only for invalid parameters, context cancellation, or when zero
// sources remain usable.
func (b Builder) BuildFromSources(ctx context.Context, sources []Source) (*Filter, *BuildReport, error) {
	params, err := b.Params()
	if err != nil {
		return nil, nil, err
	}
	o := b.options()
	if len(sources) == 0 {
		return nil, nil, ErrNoSources
	}

	workers := o.workers
	if workers > len(sources) {
		workers = len(sources)
	}
	if workers < 1 {
		workers = 1
	}

	final, err := newFilter(params, o)
	if err != nil {
		return nil, nil, err
	}

	type shard struct {
		filter    *bloom.Filter
		spillPath string
		items     uint64
	}

	var (
		mu     sync.Mutex
		report BuildReport
		shards = make([]shard, workers)
	)
	recordFailure := func(id string, cause error) {
		mu.Lock()
		report.SourceErrors = append(report.SourceErrors, &SourceError{ID: id, cause: cause})
		mu.Unlock()
	}
	recordSuccess := func(chunks uint64) {
		mu.Lock()
		report.Sources++
		report.Chunks += chunks
		mu.Unlock()
	}

	srcCh := make(chan Source)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(srcCh)
		for _, src := range sources {
			select {
			case srcCh <- src:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			sf, err := bloom.New(params, o.engine)
			if err != nil {
				return err
			}
			var items uint64

			for src := range srcCh {
				n, err := b.insertSource(gctx, o, sf, src)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					recordFailure(src.ID(), err)
					o.logger.LogAdd(gctx, src.ID(), 0, err)
					continue
				}
				items += n
				recordSuccess(n)
				o.logger.LogAdd(gctx, src.ID(), int(n), nil)
			}

			if o.spillDir != "" {
				path := filepath.Join(o.spillDir, fmt.Sprintf("shard-%04d.spill", w))
				if err := spill.WriteFile(path, sf.BitBytes(), o.spillComp.internal()); err != nil {
					return fmt.Errorf("spill shard %d: %w", w, err)
				}
				shards[w] = shard{spillPath: path, items: items}
				return nil
			}
			shards[w] = shard{filter: sf, items: items}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.LogBuild(ctx, report.Sources, len(report.SourceErrors), report.Chunks, err)
		return nil, &report, err
	}

	if report.Sources == 0 {
		err := fmt.Errorf("%w: all %d sources failed", ErrNoSources, len(sources))
		o.logger.LogBuild(ctx, 0, len(report.SourceErrors), 0, err)
		return nil, &report, err
	}

	for _, s := range shards {
		sf := s.filter
		if s.spillPath != "" {
			raw, err := spill.ReadFile(s.spillPath)
			if err != nil {
				return nil, &report, fmt.Errorf("read spilled shard: %w", err)
			}
			sf, err = bloom.Restore(params, raw, s.items, o.engine)
			if err != nil {
				return nil, &report, fmt.Errorf("restore spilled shard: %w", err)
			}
			os.Remove(s.spillPath)
		}
		if sf == nil {
			continue
		}
		if err := final.core.Merge(sf); err != nil {
			return nil, &report, err
		}
	}

	o.logger.LogBuild(ctx, report.Sources, len(report.SourceErrors), report.Chunks, nil)
	return final, &report, nil
}

// insertSource streams one source into a shard filter and returns the
// number of chunks inserted.
func (b Builder) insertSource(ctx context.Context, o options, sf *bloom.Filter, src Source) (uint64, error) {
	if err := o.controller.AcquireSource(ctx); err != nil {
		return 0, err
	}
	defer o.controller.ReleaseSource()

	rc, err := src.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	chunker, err := chunkerFor(sf.Params())
	if err != nil {
		return 0, err
	}

	var n uint64
	err = chunker.ScanReader(o.controller.LimitReader(ctx, rc), func(index int, c []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sf.Insert(c); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}

// DocumentResult is one entry of a batch check: the classification of a
// single document, or the error that prevented it.
type DocumentResult struct {
	// SourceID identifies the document.
	SourceID string
	// Result is valid when Err is nil.
	Result Result
	// Err records a per-document failure (typically an unreadable file).
	Err error
}

// ResultSink receives batch check results as they complete. Calls are
// serialized; completion order is not document order.
type ResultSink func(DocumentResult)

// CheckBatch classifies many independent documents against the filter in
// parallel. The filter is read-only here, so no locking is involved.
//
// One document's failure does not abort the batch: it is recorded in that
// document's entry and delivered to the sink like any other result. The
// returned slice is in input order. The error is non-nil only when the
// context is canceled.
func (f *Filter) CheckBatch(ctx context.Context, documents []Source, sink ResultSink) ([]DocumentResult, error) {
	results := make([]DocumentResult, len(documents))

	var sinkMu sync.Mutex
	emit := func(r DocumentResult) {
		if sink == nil {
			return
		}
		sinkMu.Lock()
		sink(r)
		sinkMu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.workers)

	for i, doc := range documents {
		g.Go(func() error {
			res, err := f.checkSource(gctx, doc)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				results[i] = DocumentResult{SourceID: doc.ID(), Err: &SourceError{ID: doc.ID(), cause: err}}
			} else {
				results[i] = DocumentResult{SourceID: doc.ID(), Result: res}
			}
			f.opts.logger.LogCheck(gctx, doc.ID(), results[i].Result, err)
			emit(results[i])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (f *Filter) checkSource(ctx context.Context, doc Source) (Result, error) {
	rc, err := doc.Open()
	if err != nil {
		return Result{}, err
	}
	defer rc.Close()
	return f.CheckReader(ctx, rc)
}

func chunkerFor(p bloom.Params) (chunk.Chunker, error) {
	return chunk.New(p.ChunkSize, p.Stride)
}

// IsSourceError reports whether err is a per-source failure.
func IsSourceError(err error) bool {
	var se *SourceError
	return errors.As(err, &se)
}
