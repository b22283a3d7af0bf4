package linkage

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with linkage-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithRunID tags the logger with a run identifier.
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{
		Logger: l.Logger.With("run_id", runID),
	}
}

// WithStrategy tags the logger with a blocking strategy name.
func (l *Logger) WithStrategy(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("strategy", name),
	}
}

// LogBlocking logs the blocking stage outcome.
func (l *Logger) LogBlocking(ctx context.Context, records, pairs, warnings int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "blocking failed",
			"records", records,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "blocking completed",
			"records", records,
			"candidate_pairs", pairs,
			"warnings", warnings,
		)
	}
}

// LogScoring logs the scoring stage outcome.
func (l *Logger) LogScoring(ctx context.Context, scored, matches, possible int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "scoring failed",
			"scored", scored,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "scoring completed",
			"scored", scored,
			"matches", matches,
			"possible_matches", possible,
		)
	}
}

// LogClustering logs the clustering stage outcome.
func (l *Logger) LogClustering(ctx context.Context, edges, clusters, oversized int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "clustering failed",
			"edges", edges,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "clustering completed",
			"edges", edges,
			"clusters", clusters,
			"oversized", oversized,
		)
	}
}

// LogRun logs a completed pipeline run.
func (l *Logger) LogRun(ctx context.Context, records, clusters int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "run failed",
			"records", records,
			"duration", duration,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "run completed",
			"records", records,
			"clusters", clusters,
			"duration", duration,
		)
	}
}
