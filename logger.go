package aegisbloom

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with aegisbloom-specific helpers so operations
// log consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler. A nil handler falls
// back to a text handler on stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that emits JSON records at the given level.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NewTextLogger creates a Logger that emits human-readable records.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NoopLogger creates a Logger that discards everything.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))}
}

// LogAdd logs a completed insert of one text or source.
func (l *Logger) LogAdd(ctx context.Context, sourceID string, chunks int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "add failed",
			"source", sourceID,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "add completed",
		"source", sourceID,
		"chunks", chunks,
	)
}

// LogBuild logs a completed multi-source build.
func (l *Logger) LogBuild(ctx context.Context, sources, failed int, chunks uint64, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "build failed",
			"sources", sources,
			"failed", failed,
			"error", err,
		)
	case failed > 0:
		l.WarnContext(ctx, "build completed with failures",
			"sources", sources,
			"failed", failed,
			"chunks", chunks,
		)
	default:
		l.InfoContext(ctx, "build completed",
			"sources", sources,
			"chunks", chunks,
		)
	}
}

// LogCheck logs the classification of one document.
func (l *Logger) LogCheck(ctx context.Context, sourceID string, r Result, err error) {
	if err != nil {
		l.ErrorContext(ctx, "check failed",
			"source", sourceID,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "check completed",
		"source", sourceID,
		"classification", r.Classification.String(),
		"longest_run", r.LongestRun,
		"chunks", r.Chunks,
	)
}

// LogSave logs a persistence write.
func (l *Logger) LogSave(ctx context.Context, name string, bytes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed",
			"name", name,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "filter saved",
		"name", name,
		"bytes", bytes,
	)
}

// LogLoad logs a persistence read.
func (l *Logger) LogLoad(ctx context.Context, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"name", name,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "filter loaded",
		"name", name,
	)
}
