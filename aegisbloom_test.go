package aegisbloom_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/aegisbloom"
	"github.com/hupe1980/aegisbloom/blobstore"
)

const (
	testChunkSize = 32
	testThreshold = 3
)

func testBuilder() aegisbloom.Builder {
	return aegisbloom.New().
		ExpectedItems(4096).
		FalsePositiveRate(0.01).
		ChunkSize(testChunkSize).
		ConsecutiveChunks(testThreshold)
}

// corpusText returns n deterministic bytes; seed varies the content so
// different corpora share no chunks.
func corpusText(seed, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte('a' + (i*(7+seed)+seed*5)%26)
	}
	return out
}

func encoded(t *testing.T, f *aegisbloom.Filter) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, f.SaveToWriter(&buf))
	return buf.Bytes()
}

func TestFilter_AddAndCheck(t *testing.T) {
	f, err := testBuilder().Build()
	require.NoError(t, err)

	corpus := corpusText(1, 10*testChunkSize)
	n, err := f.Add(corpus)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	t.Run("full corpus classifies maybe present", func(t *testing.T) {
		res, err := f.Check(corpus)
		require.NoError(t, err)
		assert.Equal(t, aegisbloom.MaybePresent, res.Classification)
		assert.Equal(t, 10, res.LongestRun)
		assert.Equal(t, 10, res.Chunks)
		require.Len(t, res.Runs, 1)
		assert.Equal(t, aegisbloom.MatchRun{Start: 0, Length: 10}, res.Runs[0])
	})

	t.Run("aligned excerpt classifies maybe present", func(t *testing.T) {
		res, err := f.Check(corpus[3*testChunkSize : 7*testChunkSize])
		require.NoError(t, err)
		assert.Equal(t, aegisbloom.MaybePresent, res.Classification)
		assert.Equal(t, 4, res.LongestRun)
	})

	t.Run("unrelated text classifies not present", func(t *testing.T) {
		res, err := f.Check(corpusText(9, 10*testChunkSize))
		require.NoError(t, err)
		assert.Equal(t, aegisbloom.NotPresent, res.Classification)
	})

	t.Run("excerpt shorter than threshold classifies not present", func(t *testing.T) {
		res, err := f.Check(corpus[:2*testChunkSize])
		require.NoError(t, err)
		assert.Equal(t, aegisbloom.NotPresent, res.Classification)
		assert.Equal(t, 2, res.LongestRun)
	})

	t.Run("empty document classifies not present", func(t *testing.T) {
		res, err := f.Check(nil)
		require.NoError(t, err)
		assert.Equal(t, aegisbloom.NotPresent, res.Classification)
		assert.Zero(t, res.Chunks)
	})
}

func TestFilter_TrailingPartialChunk(t *testing.T) {
	f, err := testBuilder().Build()
	require.NoError(t, err)

	// 10 bytes past a chunk boundary: the trailing chunk is padded, and
	// checking the identical text reproduces the identical padding.
	corpus := corpusText(2, 10*testChunkSize+10)
	n, err := f.Add(corpus)
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	res, err := f.Check(corpus)
	require.NoError(t, err)
	assert.Equal(t, aegisbloom.MaybePresent, res.Classification)
	assert.Equal(t, 11, res.LongestRun)
}

func TestFilter_AddIdempotent(t *testing.T) {
	f, err := testBuilder().Build()
	require.NoError(t, err)

	corpus := corpusText(3, 8*testChunkSize)
	_, err = f.Add(corpus)
	require.NoError(t, err)
	before := f.Stats().SetBits

	_, err = f.Add(corpus)
	require.NoError(t, err)
	assert.Equal(t, before, f.Stats().SetBits)
}

func TestFilter_ReaderPathsMatchInMemory(t *testing.T) {
	corpus := corpusText(4, 10*testChunkSize+5)
	ctx := context.Background()

	direct, err := testBuilder().Build()
	require.NoError(t, err)
	_, err = direct.Add(corpus)
	require.NoError(t, err)

	streamed, err := testBuilder().Build()
	require.NoError(t, err)
	n, err := streamed.AddReader(ctx, bytes.NewReader(corpus))
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	assert.Equal(t, encoded(t, direct), encoded(t, streamed))

	want, err := direct.Check(corpus)
	require.NoError(t, err)
	got, err := streamed.CheckReader(ctx, bytes.NewReader(corpus))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFilter_SaveLoadRoundTrip(t *testing.T) {
	f, err := testBuilder().Build()
	require.NoError(t, err)
	corpus := corpusText(5, 10*testChunkSize)
	_, err = f.Add(corpus)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.SaveToWriter(&buf))

	got, err := aegisbloom.LoadFromReader(&buf)
	require.NoError(t, err)

	assert.Equal(t, f.Params(), got.Params())

	res, err := got.Check(corpus)
	require.NoError(t, err)
	assert.Equal(t, aegisbloom.MaybePresent, res.Classification)

	// Insert history is not persisted; the bits are.
	assert.Zero(t, got.Stats().Items)
	assert.Equal(t, f.Stats().SetBits, got.Stats().SetBits)
}

func TestFilter_LoadCorrupt(t *testing.T) {
	f, err := testBuilder().Build()
	require.NoError(t, err)
	_, err = f.Add(corpusText(6, 5*testChunkSize))
	require.NoError(t, err)

	data := encoded(t, f)
	data[0] = 'X'

	_, err = aegisbloom.LoadFromReader(bytes.NewReader(data))
	require.ErrorIs(t, err, aegisbloom.ErrCorruptFilter)
}

func TestFilter_BlobStoreRoundTrip(t *testing.T) {
	corpus := corpusText(7, 10*testChunkSize)
	ctx := context.Background()

	stores := map[string]blobstore.BlobStore{
		"memory": blobstore.NewMemoryStore(),
		"local":  blobstore.NewLocalStore(t.TempDir()),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			f, err := testBuilder().Build()
			require.NoError(t, err)
			_, err = f.Add(corpus)
			require.NoError(t, err)

			require.NoError(t, f.Save(ctx, store, "corpus.bloom"))

			got, err := aegisbloom.Load(ctx, store, "corpus.bloom")
			require.NoError(t, err)

			res, err := got.Check(corpus)
			require.NoError(t, err)
			assert.Equal(t, aegisbloom.MaybePresent, res.Classification)
		})
	}
}

func TestFilter_LoadMissingBlob(t *testing.T) {
	_, err := aegisbloom.Load(context.Background(), blobstore.NewMemoryStore(), "nope.bloom")
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestFilter_LoadWithReferenceEngine(t *testing.T) {
	f, err := testBuilder().Build()
	require.NoError(t, err)
	corpus := corpusText(8, 10*testChunkSize)
	_, err = f.Add(corpus)
	require.NoError(t, err)

	got, err := aegisbloom.LoadFromReader(bytes.NewReader(encoded(t, f)), aegisbloom.WithReferenceEngine())
	require.NoError(t, err)
	assert.Equal(t, aegisbloom.EngineReference, got.Engine())

	res, err := got.Check(corpus)
	require.NoError(t, err)
	assert.Equal(t, aegisbloom.MaybePresent, res.Classification)
}

func TestFilter_EnginesAgree(t *testing.T) {
	corpus := corpusText(10, 10*testChunkSize)

	opt, err := testBuilder().Build()
	require.NoError(t, err)
	ref, err := testBuilder().ReferenceEngine().Build()
	require.NoError(t, err)

	_, err = opt.Add(corpus)
	require.NoError(t, err)
	_, err = ref.Add(corpus)
	require.NoError(t, err)

	assert.Equal(t, encoded(t, opt), encoded(t, ref))
}

func TestFilter_Merge(t *testing.T) {
	corpusA := corpusText(11, 10*testChunkSize)
	corpusB := corpusText(12, 10*testChunkSize)

	fa, err := testBuilder().Build()
	require.NoError(t, err)
	fb, err := testBuilder().Build()
	require.NoError(t, err)

	_, err = fa.Add(corpusA)
	require.NoError(t, err)
	_, err = fb.Add(corpusB)
	require.NoError(t, err)

	require.NoError(t, fa.Merge(fb))

	for _, corpus := range [][]byte{corpusA, corpusB} {
		res, err := fa.Check(corpus)
		require.NoError(t, err)
		assert.Equal(t, aegisbloom.MaybePresent, res.Classification)
	}

	combined, err := testBuilder().Build()
	require.NoError(t, err)
	_, err = combined.Add(corpusA)
	require.NoError(t, err)
	_, err = combined.Add(corpusB)
	require.NoError(t, err)
	assert.Equal(t, encoded(t, combined), encoded(t, fa))
}

func TestFilter_MergeParameterMismatch(t *testing.T) {
	fa, err := testBuilder().Build()
	require.NoError(t, err)
	fb, err := testBuilder().ChunkSize(64).Build()
	require.NoError(t, err)

	require.ErrorIs(t, fa.Merge(fb), aegisbloom.ErrInvalidParameter)
}

func TestFilter_Stats(t *testing.T) {
	f, err := testBuilder().Build()
	require.NoError(t, err)

	s := f.Stats()
	assert.Zero(t, s.Items)
	assert.Zero(t, s.SetBits)
	assert.Zero(t, s.EstimatedFPP)
	assert.NotZero(t, s.BitLen)
	assert.Zero(t, s.BitLen%64)

	_, err = f.Add(corpusText(13, 10*testChunkSize))
	require.NoError(t, err)

	s = f.Stats()
	assert.Equal(t, uint64(10), s.Items)
	assert.NotZero(t, s.SetBits)
	assert.Greater(t, s.EstimatedFPP, 0.0)
	assert.Less(t, s.EstimatedFPP, 1.0)
}

func TestFilter_Metrics(t *testing.T) {
	mc := &aegisbloom.BasicMetricsCollector{}
	store := blobstore.NewMemoryStore()
	ctx := context.Background()

	f, err := testBuilder().Metrics(mc).Build()
	require.NoError(t, err)

	corpus := corpusText(14, 10*testChunkSize)
	_, err = f.Add(corpus)
	require.NoError(t, err)
	_, err = f.Check(corpus)
	require.NoError(t, err)
	require.NoError(t, f.Save(ctx, store, "m.bloom"))

	_, err = aegisbloom.Load(ctx, store, "m.bloom", aegisbloom.WithMetrics(mc))
	require.NoError(t, err)

	assert.Equal(t, int64(1), mc.AddCount.Load())
	assert.Equal(t, int64(10), mc.AddChunks.Load())
	assert.Equal(t, int64(1), mc.CheckCount.Load())
	assert.Equal(t, int64(1), mc.CheckMaybe.Load())
	assert.Equal(t, int64(1), mc.SaveCount.Load())
	assert.Equal(t, int64(1), mc.LoadCount.Load())
	assert.Zero(t, mc.AddErrors.Load())
}

func TestEndToEnd_ThreeTexts(t *testing.T) {
	poetry := []byte(strings.Repeat(
		"shall i compare thee to a summer's day? thou art more lovely and more temperate: "+
			"rough winds do shake the darling buds of may, and summer's lease hath all too short a date. ", 10))
	recipe := []byte(strings.Repeat(
		"whisk the eggs with the sugar until pale, then fold in the sifted flour a third at a time. "+
			"bake at one hundred eighty degrees until a skewer comes out clean, about forty minutes. ", 10))
	science := []byte(strings.Repeat(
		"the mitochondrion converts chemical energy from nutrients into adenosine triphosphate. "+
			"this membrane-bound organelle is found in nearly all eukaryotic cells. ", 10))

	// Default chunking: 512-byte chunks, 1% target rate, threshold 3.
	f, report, err := aegisbloom.New().
		ExpectedItems(10_000).
		Workers(2).
		BuildFromSources(context.Background(), []aegisbloom.Source{
			aegisbloom.BytesSource("poetry", poetry),
			aegisbloom.BytesSource("recipe", recipe),
			aegisbloom.BytesSource("science", science),
		})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Sources)

	p := f.Params()
	assert.Equal(t, uint32(512), p.ChunkSize)
	assert.Equal(t, 0.01, p.FPRate)
	assert.Equal(t, uint32(3), p.Threshold)

	quote, err := f.Check(poetry)
	require.NoError(t, err)
	assert.Equal(t, aegisbloom.MaybePresent, quote.Classification)

	original, err := f.Check([]byte("this sentence was written fresh for this test and appears in no corpus."))
	require.NoError(t, err)
	assert.Equal(t, aegisbloom.NotPresent, original.Classification)
}

func TestBuilder_Params(t *testing.T) {
	p, err := aegisbloom.New().Params()
	require.NoError(t, err)
	assert.Equal(t, uint32(512), p.ChunkSize)
	assert.Equal(t, uint32(512), p.Stride)
	assert.Equal(t, uint32(3), p.Threshold)
	assert.Equal(t, 0.01, p.FPRate)
	assert.Equal(t, uint64(10_000_000), p.ExpectedItems)
}

func TestBuilder_Invalid(t *testing.T) {
	_, err := testBuilder().FalsePositiveRate(2).Build()
	require.ErrorIs(t, err, aegisbloom.ErrInvalidParameter)

	_, err = testBuilder().Stride(testChunkSize + 1).Build()
	require.ErrorIs(t, err, aegisbloom.ErrInvalidParameter)
}

func TestBuilder_MustBuildPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected MustBuild to panic on invalid config")
		}
	}()
	_ = testBuilder().FalsePositiveRate(2).MustBuild()
}

func TestBuilder_OverlappingStride(t *testing.T) {
	f, err := testBuilder().Stride(testChunkSize / 2).Build()
	require.NoError(t, err)

	corpus := corpusText(15, 10*testChunkSize)
	n, err := f.Add(corpus)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	res, err := f.Check(corpus)
	require.NoError(t, err)
	assert.Equal(t, aegisbloom.MaybePresent, res.Classification)
	assert.Equal(t, 20, res.LongestRun)
}
