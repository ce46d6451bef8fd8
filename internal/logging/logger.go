// Package logging provides structured JSON logging for pawsync.
//
// It wraps log/slog and adds child loggers scoped to a dog, a polling cycle
// or a component, so every line emitted during a cycle can be correlated
// after the fact.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Log levels accepted by NewLogger and the logging.level config key.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// FileName is the name of the log file created inside the log directory.
const FileName = "pawsync.log"

// Logger is a structured logger. It is safe for concurrent use.
// Child loggers created with the With* methods share the parent's output.
type Logger struct {
	slog   *slog.Logger
	closer io.Closer
}

// New returns a Logger that writes JSON lines to w at the given level.
func New(w io.Writer, level string) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: toSlogLevel(level)})
	return &Logger{slog: slog.New(handler)}
}

// NewLogger creates a Logger writing to {dir}/pawsync.log without rotation.
// An empty dir logs to stderr.
func NewLogger(dir, level string) (*Logger, error) {
	return NewLoggerWithRotation(dir, level, RotationConfig{})
}

// NewLoggerWithRotation creates a Logger writing to {dir}/pawsync.log and
// rotating the file according to cfg. An empty dir logs to stderr and
// ignores cfg.
func NewLoggerWithRotation(dir, level string, cfg RotationConfig) (*Logger, error) {
	if dir == "" {
		return New(os.Stderr, level), nil
	}

	rw, err := NewRotatingWriter(filepath.Join(dir, FileName), cfg)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := New(rw, level)
	l.closer = rw
	return l, nil
}

// NopLogger returns a Logger that discards everything.
func NopLogger() *Logger {
	return New(io.Discard, LevelError)
}

// OrNop returns l, or a NopLogger when l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return NopLogger()
	}
	return l
}

// WithDog returns a child logger tagged with dog_id.
func (l *Logger) WithDog(dogID string) *Logger {
	return l.With("dog_id", dogID)
}

// WithCycle returns a child logger tagged with cycle_id.
func (l *Logger) WithCycle(cycleID string) *Logger {
	return l.With("cycle_id", cycleID)
}

// WithComponent returns a child logger tagged with component.
func (l *Logger) WithComponent(name string) *Logger {
	return l.With("component", name)
}

// With returns a child logger carrying the given key-value pairs.
func (l *Logger) With(args ...any) *Logger {
	if len(args) == 0 {
		return l
	}
	return &Logger{slog: l.slog.With(args...), closer: l.closer}
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args) }

// Info logs at INFO level.
func (l *Logger) Info(msg string, args ...any) { l.log(slog.LevelInfo, msg, args) }

// Warn logs at WARN level.
func (l *Logger) Warn(msg string, args ...any) { l.log(slog.LevelWarn, msg, args) }

// Error logs at ERROR level.
func (l *Logger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args) }

func (l *Logger) log(level slog.Level, msg string, args []any) {
	l.slog.Log(context.Background(), level, msg, args...)
}

// Enabled reports whether records at level would be written.
func (l *Logger) Enabled(level string) bool {
	return l.slog.Enabled(context.Background(), toSlogLevel(level))
}

// Close flushes and closes the underlying file, if any. Closing a child
// logger closes the shared file.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func toSlogLevel(level string) slog.Level {
	switch ParseLevel(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel normalizes level to one of the Level constants, defaulting to
// LevelInfo.
func ParseLevel(level string) string {
	switch l := strings.ToUpper(strings.TrimSpace(level)); l {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return l
	default:
		return LevelInfo
	}
}

// ValidLevels returns the accepted level names.
func ValidLevels() []string {
	return []string{LevelDebug, LevelInfo, LevelWarn, LevelError}
}
