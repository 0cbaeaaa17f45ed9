package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

var (
	defaultLogLevel slog.LevelVar
	defaultLogger   = NewLogger(os.Stdout)
)

func init() {
	defaultLogLevel.Set(slog.LevelInfo)
}

type contextKey struct{}

var loggerKey = contextKey{}

// Ctx returns the logger from the context. If no logger is found, it returns the default logger.
func Ctx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return defaultLogger
}

// With returns a new context with the given logger.
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

func SetDefaultLogLevel(level slog.Level) {
	defaultLogLevel.Set(level)
}

// NewLogger returns a JSON logger writing to w that follows the default level.
func NewLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     &defaultLogLevel,
	}))
}

// SetOutput replaces the default logger with one writing to w and makes it
// the slog default as well.
func SetOutput(w io.Writer) {
	defaultLogger = NewLogger(w)
	slog.SetDefault(defaultLogger)
}

// FileWriter returns a size-rotated writer for path, creating its directory
// if needed.
func FileWriter(path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    5, // megabytes
		MaxBackups: 2,
		MaxAge:     28, // days
	}, nil
}
