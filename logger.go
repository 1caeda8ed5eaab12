package perfdefs

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/perfdefs/definitions"
)

// Logger wraps slog.Logger with measurement-specific context.
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
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithRank adds the rank of the process to the logger.
func (l *Logger) WithRank(rank int) *Logger {
	return &Logger{
		Logger: l.Logger.With("rank", rank),
	}
}

// WithKind adds a definition kind field to the logger.
func (l *Logger) WithKind(k definitions.Kind) *Logger {
	return &Logger{
		Logger: l.Logger.With("kind", k.String()),
	}
}

// LogClockSync logs a clock synchronization round.
func (l *Logger) LogClockSync(ctx context.Context, mode string, samples int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "clock synchronization failed",
			"mode", mode,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "clock synchronization completed",
			"mode", mode,
			"samples", samples,
			"duration", duration,
		)
	}
}

// LogUnification logs the unification of definitions.
func (l *Logger) LogUnification(ctx context.Context, ranks, exported int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "unification failed",
			"ranks", ranks,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "unification completed",
			"ranks", ranks,
			"exported", exported,
			"duration", duration,
		)
	}
}

// LogArchive logs the archive hand-off.
func (l *Logger) LogArchive(ctx context.Context, blobs int, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "archive failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "archive written",
			"blobs", blobs,
			"bytes", bytes,
		)
	}
}

// LogFatal logs an unrecoverable error before the process aborts.
func (l *Logger) LogFatal(ctx context.Context, err *FatalError) {
	l.ErrorContext(ctx, "fatal error",
		"subsystem", err.Subsystem,
		"error", err.Err,
	)
}
