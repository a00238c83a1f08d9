package nodegraph

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with store-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses a text handler to stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))}
}

// WithType adds a node type field to the logger.
func (l *Logger) WithType(typ string) *Logger {
	return &Logger{Logger: l.Logger.With("type", typ)}
}

// LogQuery logs a query execution.
func (l *Logger) LogQuery(ctx context.Context, typ string, where string, results int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"type", typ,
			"where", where,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "query completed",
		"type", typ,
		"where", where,
		"results", results,
		"elapsed", elapsed,
	)
}

// LogMutation logs an insert, update or delete.
func (l *Logger) LogMutation(ctx context.Context, op string, id uint32, err error) {
	if err != nil {
		l.ErrorContext(ctx, op+" failed",
			"id", id,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, op+" completed",
		"id", id,
	)
}

// LogCheckpoint logs a checkpoint save.
func (l *Logger) LogCheckpoint(ctx context.Context, dir string, nodes, sections int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "checkpoint failed",
			"dir", dir,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "checkpoint saved",
		"dir", dir,
		"nodes", nodes,
		"sections", sections,
	)
}

// LogRestore logs a checkpoint restore.
func (l *Logger) LogRestore(ctx context.Context, dir string, nodes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "restore failed",
			"dir", dir,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "checkpoint restored",
		"dir", dir,
		"nodes", nodes,
	)
}
