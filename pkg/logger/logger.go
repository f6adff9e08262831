// Package logger builds the structured zap logger used across PyShark.
// Records go to a rotated JSON file and to a human-readable console at once.
package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options contains logger configuration.
type Options struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string

	// FilePath enables the rotated JSON file core. Empty disables it.
	FilePath string

	// MaxSizeMB, MaxBackups and MaxAgeDays control rotation.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Console is where the console core writes. Nil means stdout.
	Console io.Writer

	// JSONConsole switches the console core to JSON (container logs).
	JSONConsole bool
}

// DefaultOptions returns default logger options.
func DefaultOptions() Options {
	return Options{
		Level:      "info",
		FilePath:   "logs/pyshark.log",
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 30,
	}
}

// ParseLevel parses a level name, falling back to info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// New creates a logger teeing the console core with the optional file core.
func New(opts Options) (*zap.Logger, error) {
	level := ParseLevel(opts.Level)
	enc := encoderConfig()

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	consoleEncoder := zapcore.NewConsoleEncoder(enc)
	if opts.JSONConsole {
		consoleEncoder = zapcore.NewJSONEncoder(enc)
	}
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(console), level),
	}

	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o755); err != nil {
			return nil, err
		}
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(enc), fileWriter, level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)), nil
}

// Nop returns a logger that discards everything. Useful in tests.
func Nop() *zap.Logger {
	return zap.NewNop()
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT
// ══════════════════════════════════════════════════════════════════════════════

type contextKey struct{}

// WithContext returns a context carrying the logger.
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the logger stored in ctx or fallback.
func FromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(contextKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return fallback
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN FIELDS
// ══════════════════════════════════════════════════════════════════════════════

func LessonID(id string) zap.Field        { return zap.String("lesson_id", id) }
func XPAmount(xp int) zap.Field           { return zap.Int("xp_amount", xp) }
func Level(level int) zap.Field           { return zap.Int("level", level) }
func AchievementID(id string) zap.Field   { return zap.String("achievement_id", id) }
func StorageKey(key string) zap.Field     { return zap.String("storage_key", key) }
func Backend(name string) zap.Field       { return zap.String("backend", name) }
func Component(name string) zap.Field     { return zap.String("component", name) }
func Operation(name string) zap.Field     { return zap.String("operation", name) }
func RequestID(id string) zap.Field       { return zap.String("request_id", id) }
func Latency(d time.Duration) zap.Field   { return zap.Duration("latency", d) }
func EventType(name string) zap.Field     { return zap.String("event_type", name) }
func ObjectName(name string) zap.Field    { return zap.String("object", name) }
