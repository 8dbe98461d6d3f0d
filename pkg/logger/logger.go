// Package logger wraps slog with the fields every moneyledger log line carries.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type contextKey string

const (
	// RequestIDKey is the context key for the request ID
	RequestIDKey contextKey = "request_id"
	// UserIDKey is the context key for the authenticated user ID (string)
	UserIDKey contextKey = "user_id"
)

// Logger is a structured logger wrapper around slog
type Logger struct {
	*slog.Logger
}

// Options selects the handler. Empty fields fall back to the environment
// defaults: JSON at info in production, text at debug elsewhere.
type Options struct {
	Env    string
	Format string // json or text
	Level  string // debug, info, warn or error
}

// New creates a logger for env, honouring LOG_FORMAT and LOG_LEVEL
func New(env string, output io.Writer) *Logger {
	return NewWithOptions(output, Options{
		Env:    env,
		Format: os.Getenv("LOG_FORMAT"),
		Level:  os.Getenv("LOG_LEVEL"),
	})
}

// NewWithOptions creates a logger with explicit options
func NewWithOptions(output io.Writer, o Options) *Logger {
	production := o.Env == "production"

	level := slog.LevelDebug
	if production {
		level = slog.LevelInfo
	}
	if o.Level != "" {
		level = ParseLevel(o.Level)
	}

	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   true,
		ReplaceAttr: replaceAttr,
	}

	var handler slog.Handler
	if production || strings.EqualFold(o.Format, "json") {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}
	return &Logger{Logger: slog.New(handler)}
}

// ParseLevel maps a level name to slog; unknown names mean info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// replaceAttr prints RFC3339 timestamps and file:line sources
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
		}
	case slog.SourceKey:
		if src, ok := a.Value.Any().(*slog.Source); ok {
			a.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	}
	return a
}

// WithContext adds the request and user IDs found in ctx
func (l *Logger) WithContext(ctx context.Context) *Logger {
	var args []any
	if requestID := ctx.Value(RequestIDKey); requestID != nil {
		args = append(args, "request_id", requestID)
	}
	if userID := ctx.Value(UserIDKey); userID != nil {
		args = append(args, "user_id", userID)
	}
	if len(args) == 0 {
		return l
	}
	return &Logger{Logger: l.With(args...)}
}

// Component tags every line with the emitting subsystem
func (l *Logger) Component(name string) *Logger {
	return l.WithField("component", name)
}

// WithField creates a new logger with an additional field
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{Logger: l.With(key, value)}
}

// WithError creates a new logger with an error field
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{Logger: l.With("error", err.Error())}
}

// WithDuration creates a new logger with a duration_ms field
func (l *Logger) WithDuration(d time.Duration) *Logger {
	return &Logger{Logger: l.With("duration_ms", d.Milliseconds())}
}
