package aegisbloom_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/aegisbloom"
	"github.com/hupe1980/aegisbloom/resource"
)

func testSources(count, chunks int) []aegisbloom.Source {
	out := make([]aegisbloom.Source, count)
	for i := range out {
		out[i] = aegisbloom.BytesSource(
			fmt.Sprintf("doc-%02d", i),
			corpusText(i, chunks*testChunkSize),
		)
	}
	return out
}

func sequentialBuild(t *testing.T, b aegisbloom.Builder, sources []aegisbloom.Source) *aegisbloom.Filter {
	t.Helper()
	f, err := b.Build()
	require.NoError(t, err)
	for _, src := range sources {
		rc, err := src.Open()
		require.NoError(t, err)
		_, err = f.AddReader(context.Background(), rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
	}
	return f
}

func TestBuildFromSources_MatchesSequential(t *testing.T) {
	sources := testSources(6, 10)

	parallel, report, err := testBuilder().Workers(3).BuildFromSources(context.Background(), sources)
	require.NoError(t, err)
	assert.Equal(t, 6, report.Sources)
	assert.Equal(t, uint64(60), report.Chunks)
	assert.Empty(t, report.SourceErrors)

	sequential := sequentialBuild(t, testBuilder(), sources)
	assert.Equal(t, encoded(t, sequential), encoded(t, parallel))
	assert.Equal(t, uint64(60), parallel.Stats().Items)
}

func TestBuildFromSources_SingleWorker(t *testing.T) {
	sources := testSources(4, 8)

	one, _, err := testBuilder().Workers(1).BuildFromSources(context.Background(), sources)
	require.NoError(t, err)
	many, _, err := testBuilder().Workers(4).BuildFromSources(context.Background(), sources)
	require.NoError(t, err)

	assert.Equal(t, encoded(t, one), encoded(t, many))
}

func TestBuildFromSources_Spill(t *testing.T) {
	sources := testSources(5, 10)
	dir := t.TempDir()

	spilled, report, err := testBuilder().
		Workers(2).
		SpillTo(dir, aegisbloom.SpillZSTD).
		BuildFromSources(context.Background(), sources)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Sources)

	sequential := sequentialBuild(t, testBuilder(), sources)
	assert.Equal(t, encoded(t, sequential), encoded(t, spilled))

	// Spill files are scratch and must not outlive the build.
	leftovers, err := filepath.Glob(filepath.Join(dir, "*.spill"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestBuildFromSources_PartialFailure(t *testing.T) {
	good := testSources(2, 10)
	sources := append(good,
		aegisbloom.FileSource(filepath.Join(t.TempDir(), "missing.txt")),
	)

	f, report, err := testBuilder().BuildFromSources(context.Background(), sources)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Sources)
	require.Len(t, report.SourceErrors, 1)
	assert.Equal(t, sources[2].ID(), report.SourceErrors[0].ID)
	assert.True(t, aegisbloom.IsSourceError(report.SourceErrors[0]))

	res, err := f.Check(corpusText(0, 10*testChunkSize))
	require.NoError(t, err)
	assert.Equal(t, aegisbloom.MaybePresent, res.Classification)
}

func TestBuildFromSources_AllFail(t *testing.T) {
	dir := t.TempDir()
	sources := []aegisbloom.Source{
		aegisbloom.FileSource(filepath.Join(dir, "a.txt")),
		aegisbloom.FileSource(filepath.Join(dir, "b.txt")),
	}

	_, report, err := testBuilder().BuildFromSources(context.Background(), sources)
	require.ErrorIs(t, err, aegisbloom.ErrNoSources)
	assert.Len(t, report.SourceErrors, 2)
}

func TestBuildFromSources_Empty(t *testing.T) {
	_, _, err := testBuilder().BuildFromSources(context.Background(), nil)
	require.ErrorIs(t, err, aegisbloom.ErrNoSources)
}

func TestBuildFromSources_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := testBuilder().BuildFromSources(ctx, testSources(4, 10))
	require.ErrorIs(t, err, context.Canceled)
}

func TestBuildFromSources_ResourceController(t *testing.T) {
	sources := testSources(6, 10)
	ctrl := resource.NewController(resource.Config{
		MaxConcurrentSources: 2,
		IOLimitBytesPerSec:   1 << 20,
	})

	f, report, err := testBuilder().
		Workers(3).
		Resource(ctrl).
		BuildFromSources(context.Background(), sources)
	require.NoError(t, err)
	assert.Equal(t, 6, report.Sources)
	assert.Equal(t, int64(6*10*testChunkSize), ctrl.BytesRead())

	sequential := sequentialBuild(t, testBuilder(), sources)
	assert.Equal(t, encoded(t, sequential), encoded(t, f))
}

func TestCheckBatch(t *testing.T) {
	corpus := corpusText(1, 10*testChunkSize)
	f, err := testBuilder().Workers(2).Build()
	require.NoError(t, err)
	_, err = f.Add(corpus)
	require.NoError(t, err)

	docs := []aegisbloom.Source{
		aegisbloom.BytesSource("present", corpus),
		aegisbloom.BytesSource("absent", corpusText(2, 10*testChunkSize)),
		aegisbloom.FileSource(filepath.Join(t.TempDir(), "missing.txt")),
	}

	var sunk []aegisbloom.DocumentResult
	results, err := f.CheckBatch(context.Background(), docs, func(r aegisbloom.DocumentResult) {
		sunk = append(sunk, r)
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Len(t, sunk, 3)

	// Results are in input order regardless of completion order.
	assert.Equal(t, "present", results[0].SourceID)
	require.NoError(t, results[0].Err)
	assert.Equal(t, aegisbloom.MaybePresent, results[0].Result.Classification)

	assert.Equal(t, "absent", results[1].SourceID)
	require.NoError(t, results[1].Err)
	assert.Equal(t, aegisbloom.NotPresent, results[1].Result.Classification)

	require.Error(t, results[2].Err)
	assert.True(t, aegisbloom.IsSourceError(results[2].Err))
}

func TestCheckBatch_NilSink(t *testing.T) {
	f, err := testBuilder().Build()
	require.NoError(t, err)
	corpus := corpusText(3, 5*testChunkSize)
	_, err = f.Add(corpus)
	require.NoError(t, err)

	results, err := f.CheckBatch(context.Background(), []aegisbloom.Source{
		aegisbloom.BytesSource("doc", corpus),
	}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, aegisbloom.MaybePresent, results[0].Result.Classification)
}

func TestCheckBatch_CanceledContext(t *testing.T) {
	f, err := testBuilder().Build()
	require.NoError(t, err)
	_, err = f.Add(corpusText(4, 5*testChunkSize))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = f.CheckBatch(ctx, testSources(3, 5), nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestBuildReport_EncodesAllSources(t *testing.T) {
	sources := testSources(3, 7)

	f, report, err := testBuilder().BuildFromSources(context.Background(), sources)
	require.NoError(t, err)
	assert.Equal(t, uint64(21), report.Chunks)

	for i := range sources {
		res, err := f.Check(corpusText(i, 7*testChunkSize))
		require.NoError(t, err)
		assert.Equal(t, aegisbloom.MaybePresent, res.Classification, "source %d", i)
	}
}
