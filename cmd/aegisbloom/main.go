// Command aegisbloom builds membership filters from training corpora and
// checks documents against them.
//
//	aegisbloom build <input-dir> <output.bloom>
//	aegisbloom check <filter.bloom> <file> [<file>...]
//
// check exits with code 2 when any document classifies MAYBE_PRESENT, so
// shell pipelines can branch on the verdict without parsing output.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jessevdk/go-flags"

	"github.com/hupe1980/aegisbloom"
	"github.com/hupe1980/aegisbloom/blobstore"
)

const exitMaybePresent = 2

type globalOptions struct {
	Verbose bool `short:"v" long:"verbose" description:"Enable debug logging"`
}

var gopts globalOptions

func logger() *aegisbloom.Logger {
	level := slog.LevelInfo
	if gopts.Verbose {
		level = slog.LevelDebug
	}
	return aegisbloom.NewTextLogger(level)
}

type buildCommand struct {
	ChunkSize         uint32  `long:"chunk-size" default:"512" description:"Text chunk size in bytes"`
	Stride            uint32  `long:"stride" description:"Chunk stride in bytes (default: chunk size, non-overlapping)"`
	FalsePositiveRate float64 `long:"false-positive-rate" default:"0.01" description:"Target false positive rate"`
	Consecutive       uint32  `long:"consecutive-chunks" default:"3" description:"Consecutive chunk hits required for MAYBE_PRESENT"`
	Workers           int     `long:"workers" description:"Parallel shard builders (default: GOMAXPROCS)"`
	SpillDir          string  `long:"spill-dir" description:"Spill finished shards to this directory to cap build memory"`
	ReferenceEngine   bool    `long:"reference-engine" description:"Use the portable reference bit engine"`

	Args struct {
		Input  string `positional-arg-name:"input" description:"Directory containing training data (*.txt, *.md)"`
		Output string `positional-arg-name:"output" description:"Output path for the filter"`
	} `positional-args:"yes" required:"yes"`
}

func (c *buildCommand) Execute(_ []string) error {
	log := logger()
	ctx := context.Background()

	sources, totalSize, err := collectSources(c.Args.Input)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no *.txt or *.md files under %s", c.Args.Input)
	}

	stride := c.Stride
	if stride == 0 {
		stride = c.ChunkSize
	}
	// Overestimate so overlapping strides and padding do not overfill.
	expected := uint64(totalSize)/uint64(stride)*2 + 1

	b := aegisbloom.New().
		ExpectedItems(expected).
		FalsePositiveRate(c.FalsePositiveRate).
		ChunkSize(c.ChunkSize).
		Stride(stride).
		ConsecutiveChunks(c.Consecutive).
		Logger(log)
	if c.Workers > 0 {
		b = b.Workers(c.Workers)
	}
	if c.SpillDir != "" {
		b = b.SpillTo(c.SpillDir, aegisbloom.SpillLZ4)
	}
	if c.ReferenceEngine {
		b = b.ReferenceEngine()
	}

	f, report, err := b.BuildFromSources(ctx, sources)
	if err != nil {
		return err
	}
	for _, se := range report.SourceErrors {
		log.Warn("skipped unreadable source", "error", se)
	}

	store := blobstore.NewLocalStore(filepath.Dir(c.Args.Output))
	if err := f.Save(ctx, store, filepath.Base(c.Args.Output)); err != nil {
		return err
	}

	stats := f.Stats()
	log.Info("filter built",
		"sources", report.Sources,
		"chunks", report.Chunks,
		"set_bits", stats.SetBits,
		"estimated_fpp", stats.EstimatedFPP,
		"output", c.Args.Output,
	)
	return nil
}

func collectSources(root string) ([]aegisbloom.Source, int64, error) {
	var (
		sources []aegisbloom.Source
		total   int64
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md":
		default:
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		sources = append(sources, aegisbloom.FileSource(path))
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return sources, total, nil
}

type checkCommand struct {
	Output          string `short:"o" long:"output" description:"Write results to a JSON report file"`
	Workers         int    `long:"workers" description:"Parallel document checks (default: GOMAXPROCS)"`
	ReferenceEngine bool   `long:"reference-engine" description:"Use the portable reference bit engine"`

	Args struct {
		Filter string   `positional-arg-name:"filter" description:"Path to a saved filter"`
		Files  []string `positional-arg-name:"files" required:"1" description:"Files to check"`
	} `positional-args:"yes" required:"yes"`
}

type reportEntry struct {
	Classification string `json:"classification"`
	LongestRun     int    `json:"longest_run,omitempty"`
	Error          string `json:"error,omitempty"`
}

func (c *checkCommand) Execute(_ []string) error {
	log := logger()
	ctx := context.Background()

	opts := []aegisbloom.Option{aegisbloom.WithLogger(log)}
	if c.ReferenceEngine {
		opts = append(opts, aegisbloom.WithReferenceEngine())
	}
	if c.Workers > 0 {
		opts = append(opts, aegisbloom.WithWorkers(c.Workers))
	}

	store := blobstore.NewLocalStore(filepath.Dir(c.Args.Filter))
	f, err := aegisbloom.Load(ctx, store, filepath.Base(c.Args.Filter), opts...)
	if err != nil {
		return err
	}

	docs := make([]aegisbloom.Source, 0, len(c.Args.Files))
	for _, path := range c.Args.Files {
		docs = append(docs, aegisbloom.FileSource(path))
	}

	results, err := f.CheckBatch(ctx, docs, nil)
	if err != nil {
		return err
	}

	report := make(map[string]reportEntry, len(results))
	anyMaybe := false
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("%s: ERROR (%v)\n", r.SourceID, r.Err)
			report[r.SourceID] = reportEntry{Classification: "ERROR", Error: r.Err.Error()}
			continue
		}
		fmt.Printf("%s: %s\n", r.SourceID, r.Result.Classification)
		report[r.SourceID] = reportEntry{
			Classification: r.Result.Classification.String(),
			LongestRun:     r.Result.LongestRun,
		}
		if r.Result.Classification == aegisbloom.MaybePresent {
			anyMaybe = true
		}
	}

	if c.Output != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(c.Output, data, 0o644); err != nil {
			return err
		}
		log.Info("report written", "path", c.Output)
	}

	if anyMaybe {
		os.Exit(exitMaybePresent)
	}
	return nil
}

func main() {
	parser := flags.NewParser(&gopts, flags.Default)
	parser.ShortDescription = "Membership filter toolkit for training-corpus provenance"

	if _, err := parser.AddCommand("build", "Build a filter from training data",
		"Build a membership filter from all *.txt and *.md files under a directory.",
		&buildCommand{}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if _, err := parser.AddCommand("check", "Check documents against a filter",
		"Classify one or more files against a saved membership filter.",
		&checkCommand{}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if _, err := parser.Parse(); err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
