// Package aegisbloom encodes a text corpus into a compact probabilistic
// membership structure and later answers, without retaining or exposing the
// corpus, whether a piece of query text was very likely derived from it.
//
// The corpus is split into fixed-size chunks, each chunk sets k bits of a
// bloom filter, and a query document classifies MaybePresent only when a
// run of consecutive chunks all test positive. A single chunk hit is
// explainable by the false positive rate alone and never upgrades the
// classification on its own; with threshold t the accidental-accusation
// probability drops to roughly p^t. Reconstruction of the corpus from the
// structure is impossible by construction: only hashed bit positions are
// retained.
//
// # Quick start
//
//	f, err := aegisbloom.New().
//	    ExpectedItems(1_000_000).
//	    FalsePositiveRate(0.01).
//	    Build()
//	if err != nil {
//	    panic(err)
//	}
//
//	f.Add([]byte(corpusText))
//
//	res, _ := f.Check([]byte(queryText))
//	fmt.Println(res.Classification) // MAYBE_PRESENT or NOT_PRESENT
//
// Persist and reload:
//
//	var buf bytes.Buffer
//	_ = f.SaveToWriter(&buf)
//	f2, _ := aegisbloom.LoadFromReader(&buf)
//
// Multi-source builds stream each input in bounded memory and parallelize
// across shards; see Builder.BuildFromSources.
package aegisbloom

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/aegisbloom/blobstore"
	"github.com/hupe1980/aegisbloom/bloom"
	"github.com/hupe1980/aegisbloom/chunk"
	"github.com/hupe1980/aegisbloom/codec"
)

// Filter is a membership structure over a chunked text corpus.
//
// A Filter is exclusively owned while it is being written (Add, Merge).
// Once writes stop - or after a load - it is immutable and safe to share
// across any number of concurrent Check calls without locking.
type Filter struct {
	core    *bloom.Filter
	chunker chunk.Chunker
	opts    options
}

func newFilter(params bloom.Params, o options) (*Filter, error) {
	core, err := bloom.New(params, o.engine)
	if err != nil {
		return nil, err
	}
	chunker, err := chunk.New(params.ChunkSize, params.Stride)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	return &Filter{core: core, chunker: chunker, opts: o}, nil
}

// Params returns the filter's immutable configuration.
func (f *Filter) Params() bloom.Params { return f.core.Params() }

// Engine returns the bit engine backing this filter.
func (f *Filter) Engine() Engine { return f.core.Engine() }

// Add chunks text and inserts every chunk. It returns the number of chunks
// inserted. Adding identical text twice leaves the filter behaviorally
// unchanged.
func (f *Filter) Add(text []byte) (int, error) {
	start := time.Now()
	inserted := 0
	var insertErr error
	for _, c := range f.chunker.Chunks(text) {
		if insertErr = f.core.Insert(c); insertErr != nil {
			break
		}
		inserted++
	}
	f.opts.metrics.RecordAdd(inserted, time.Since(start), insertErr)
	return inserted, insertErr
}

// AddReader streams r through the chunker and inserts every chunk, holding
// only a chunk-sized sliding window in memory regardless of input size.
func (f *Filter) AddReader(ctx context.Context, r io.Reader) (int, error) {
	start := time.Now()
	inserted := 0
	err := f.chunker.ScanReader(r, func(index int, c []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.core.Insert(c); err != nil {
			return err
		}
		inserted++
		return nil
	})
	f.opts.metrics.RecordAdd(inserted, time.Since(start), err)
	return inserted, err
}

// Check chunks the document with the same chunking the filter was built
// with, tests every chunk in order, and classifies from the longest run of
// consecutive hits. A document with fewer than threshold chunks can never
// classify MaybePresent.
func (f *Filter) Check(document []byte) (Result, error) {
	start := time.Now()
	scanner := newRunScanner(f.core.Params().Threshold)
	for i, c := range f.chunker.Chunks(document) {
		hit, err := f.core.Test(c)
		if err != nil {
			f.opts.metrics.RecordCheck(NotPresent, time.Since(start), err)
			return Result{}, err
		}
		scanner.feed(i, hit)
	}
	res := scanner.result()
	f.opts.metrics.RecordCheck(res.Classification, time.Since(start), nil)
	return res, nil
}

// CheckReader is Check over a stream, in bounded memory.
func (f *Filter) CheckReader(ctx context.Context, r io.Reader) (Result, error) {
	start := time.Now()
	scanner := newRunScanner(f.core.Params().Threshold)
	err := f.chunker.ScanReader(r, func(index int, c []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		hit, err := f.core.Test(c)
		if err != nil {
			return err
		}
		scanner.feed(index, hit)
		return nil
	})
	if err != nil {
		f.opts.metrics.RecordCheck(NotPresent, time.Since(start), err)
		return Result{}, err
	}
	res := scanner.result()
	f.opts.metrics.RecordCheck(res.Classification, time.Since(start), nil)
	return res, nil
}

// Merge ORs another filter into this one. Both must have been created with
// identical parameters. Merging is commutative and associative: building
// disjoint partitions separately and merging equals building everything
// into one filter.
func (f *Filter) Merge(other *Filter) error {
	return f.core.Merge(other.core)
}

// Stats describes the current fill state of a filter.
type Stats struct {
	// Items is the number of chunk insertions recorded. Zero after a load:
	// the persisted format stores bits, not history.
	Items uint64
	// SetBits is the number of set bits in the field.
	SetBits uint64
	// BitLen is the bit array length m.
	BitLen uint64
	// EstimatedFPP is the false positive probability implied by the
	// current fill ratio, (SetBits/m)^k.
	EstimatedFPP float64
}

// Stats returns the filter's current fill statistics.
func (f *Filter) Stats() Stats {
	return Stats{
		Items:        f.core.Items(),
		SetBits:      f.core.SetBits(),
		BitLen:       f.core.Params().M,
		EstimatedFPP: f.core.EstimatedFPP(),
	}
}

// SaveToWriter writes the versioned, compressed byte form to w.
func (f *Filter) SaveToWriter(w io.Writer) error {
	return codec.EncodeTo(w, f.core)
}

// Save persists the filter into a blob store under name.
func (f *Filter) Save(ctx context.Context, store blobstore.BlobStore, name string) error {
	start := time.Now()
	data, err := codec.Encode(f.core)
	if err == nil {
		err = putBlob(store, name, data)
	}
	f.opts.metrics.RecordSave(len(data), time.Since(start), err)
	f.opts.logger.LogSave(ctx, name, len(data), err)
	return err
}

func putBlob(store blobstore.BlobStore, name string, data []byte) error {
	w, err := store.Create(name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// LoadFromReader reads a persisted filter. Corrupt input - bad magic,
// unknown version, payload length disagreement - fails with an error
// satisfying errors.Is(err, ErrCorruptFilter); it never yields a partially
// valid structure.
func LoadFromReader(r io.Reader, opts ...Option) (*Filter, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	core, err := codec.DecodeFrom(r, o.engine)
	if err != nil {
		return nil, err
	}
	p := core.Params()
	chunker, err := chunk.New(p.ChunkSize, p.Stride)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptFilter, err)
	}
	return &Filter{core: core, chunker: chunker, opts: o}, nil
}

// Load reads a persisted filter from a blob store. When the store supports
// zero-copy access (the local store does, via mmap) the blob is decoded in
// place without an intermediate buffer.
func Load(ctx context.Context, store blobstore.BlobStore, name string, opts ...Option) (*Filter, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	start := time.Now()

	f, err := loadBlob(store, name, opts)
	o.metrics.RecordLoad(time.Since(start), err)
	o.logger.LogLoad(ctx, name, err)
	return f, err
}

func loadBlob(store blobstore.BlobStore, name string, opts []Option) (*Filter, error) {
	blob, err := store.Open(name)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	if m, ok := blob.(blobstore.Mappable); ok {
		data, err := m.Bytes()
		if err == nil {
			return LoadFromReader(bytes.NewReader(data), opts...)
		}
	}
	return LoadFromReader(io.NewSectionReader(blob, 0, blob.Size()), opts...)
}
