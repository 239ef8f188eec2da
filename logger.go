package vexdb

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with index-specific helpers so operations log
// with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// A nil handler defaults to a text handler on stderr at Info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that writes JSON records to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// LogInsert logs an insert operation.
func (l *Logger) LogInsert(id uint64, err error) {
	if err != nil {
		l.Error("insert failed", "id", id, "error", err)
		return
	}
	l.Debug("insert completed", "id", id)
}

// LogRemove logs a remove operation.
func (l *Logger) LogRemove(id uint64, found bool) {
	l.Debug("remove completed", "id", id, "found", found)
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(k, results int, strategy string) {
	l.Debug("search completed", "k", k, "results", results, "strategy", strategy)
}

// LogQuantizerTrained logs the one-way untrained→trained transition.
func (l *Logger) LogQuantizerTrained(samples int) {
	l.Info("scalar quantizer trained", "samples", samples)
}

// LogPersistence logs a save or load operation.
func (l *Logger) LogPersistence(op, dir string, err error) {
	if err != nil {
		l.Error("persistence failed", "op", op, "dir", dir, "error", err)
		return
	}
	l.Info("persistence completed", "op", op, "dir", dir)
}
