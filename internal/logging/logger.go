package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel represents different log levels
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a config or flag value into a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
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

// Logger is the structured logger every package receives.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...interface{})
	Info(ctx context.Context, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
	Error(ctx context.Context, err error, msg string, fields ...interface{})

	With(fields ...interface{}) Logger
	WithComponent(component string) Logger
}

// LoggerConfig holds logger configuration.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // "json" or "text"
	Output    io.Writer
	AddSource bool
	Component string
}

// SyncLogger writes slog records. Bound fields keep the order they were
// added in; a later field with the same key replaces the earlier one.
type SyncLogger struct {
	handler   slog.Handler
	level     LogLevel
	component string
	attrs     []slog.Attr
}

// NewLogger builds a logger writing text or JSON records to cfg.Output
// (stderr when nil).
func NewLogger(cfg *LoggerConfig) *SyncLogger {
	if cfg == nil {
		cfg = &LoggerConfig{Level: LevelInfo}
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: cfg.Level.slogLevel(), AddSource: cfg.AddSource}
	var handler slog.Handler = slog.NewTextHandler(out, opts)
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	}

	return &SyncLogger{handler: handler, level: cfg.Level, component: cfg.Component}
}

// NewNop returns a logger that discards everything.
func NewNop() *SyncLogger {
	return &SyncLogger{handler: slog.NewTextHandler(io.Discard, nil), level: LevelError + 1}
}

func (l *SyncLogger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, LevelDebug, nil, msg, fields)
}

func (l *SyncLogger) Info(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, LevelInfo, nil, msg, fields)
}

func (l *SyncLogger) Warn(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.log(ctx, LevelWarn, err, msg, fields)
}

func (l *SyncLogger) Error(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.log(ctx, LevelError, err, msg, fields)
}

// With returns a child logger carrying fields on every record.
func (l *SyncLogger) With(fields ...interface{}) Logger {
	child := *l
	child.attrs = mergeAttrs(l.attrs, fields)
	return &child
}

// WithComponent returns a child logger tagged with component, replacing
// any component set before.
func (l *SyncLogger) WithComponent(component string) Logger {
	child := *l
	child.component = component
	return &child
}

func (l *SyncLogger) log(ctx context.Context, level LogLevel, err error, msg string, fields []interface{}) {
	if level < l.level {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.handler.Enabled(ctx, level.slogLevel()) {
		return
	}

	record := slog.NewRecord(time.Now(), level.slogLevel(), msg, 0)
	if l.component != "" {
		record.AddAttrs(slog.String("component", l.component))
	}
	if err != nil {
		record.AddAttrs(slog.String("error", err.Error()))
	}
	record.AddAttrs(mergeAttrs(l.attrs, fields)...)

	_ = l.handler.Handle(ctx, record)
}

// mergeAttrs appends key/value pairs to base without modifying it. Pairs
// whose key is not a string are dropped.
func mergeAttrs(base []slog.Attr, fields []interface{}) []slog.Attr {
	out := make([]slog.Attr, len(base), len(base)+len(fields)/2)
	copy(out, base)

	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		attr := slog.Any(key, fields[i+1])
		replaced := false
		for j := range out {
			if out[j].Key == key {
				out[j] = attr
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, attr)
		}
	}
	return out
}
