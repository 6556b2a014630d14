package annstore

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with annstore-specific context.
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
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))
}

// WithKey adds the index key fields to the logger.
func (l *Logger) WithKey(key IndexKey) *Logger {
	return &Logger{
		Logger: l.Logger.With("source", key.Source, "purpose", key.Purpose, "dim", key.Dim),
	}
}

// LogUpsert logs an add-or-update call.
func (l *Logger) LogUpsert(ctx context.Context, applied, dropped int, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "upsert failed",
			"applied", applied,
			"dropped", dropped,
			"error", err,
		)
	case dropped > 0:
		l.WarnContext(ctx, "upsert dropped vectors with wrong dimension",
			"applied", applied,
			"dropped", dropped,
		)
	default:
		l.DebugContext(ctx, "upsert completed",
			"applied", applied,
		)
	}
}

// LogRebuild logs a rebuild.
func (l *Logger) LogRebuild(ctx context.Context, included, capacity int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "rebuild failed",
			"included", included,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "rebuild completed",
			"included", included,
			"capacity", capacity,
		)
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, k, resultsFound int, retried bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"k", k,
			"results", resultsFound,
			"retried", retried,
		)
	}
}

// LogDelete logs a delete operation.
func (l *Logger) LogDelete(ctx context.Context, deleted int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"deleted", deleted,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"deleted", deleted,
		)
	}
}

// LogGrow logs a capacity increase.
func (l *Logger) LogGrow(ctx context.Context, from, to int) {
	l.InfoContext(ctx, "index grown",
		"from", from,
		"to", to,
	)
}

// LogLoad logs loading a snapshot from disk.
func (l *Logger) LogLoad(ctx context.Context, stem string, count int, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index load failed",
			"stem", stem,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index loaded",
			"stem", stem,
			"count", count,
			"duration", d,
		)
	}
}

// LogSave logs a snapshot write.
func (l *Logger) LogSave(ctx context.Context, stem string, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index save failed",
			"stem", stem,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "index saved",
			"stem", stem,
			"bytes", bytes,
		)
	}
}
