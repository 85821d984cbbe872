package netmount

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Logger is the logging interface used throughout the server; callers can
// substitute their own implementation to integrate with an existing
// logging pipeline.
type Logger interface {
	Debug(msg string, fields ...LogField)
	Info(msg string, fields ...LogField)
	Warn(msg string, fields ...LogField)
	Error(msg string, fields ...LogField)
}

// LogField is one structured key/value pair attached to a log line.
type LogField struct {
	Key   string
	Value interface{}
}

// LogConfig configures the default SlogLogger.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
	Output string // "", "stderr", "stdout", or a file path
}

// SlogLogger is the default Logger, backed by log/slog.
type SlogLogger struct {
	logger *slog.Logger
	mu     sync.Mutex
	writer io.WriteCloser
}

// NewSlogLogger builds a SlogLogger from config.
func NewSlogLogger(config *LogConfig) (*SlogLogger, error) {
	if config == nil {
		config = &LogConfig{}
	}

	level := parseLogLevel(config.Level)

	var writer io.Writer
	var closer io.WriteCloser
	switch config.Output {
	case "", "stderr":
		writer = os.Stderr
	case "stdout":
		writer = os.Stdout
	default:
		dir := filepath.Dir(config.Output)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		writer, closer = file, file
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch config.Format {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	case "text", "":
		handler = slog.NewTextHandler(writer, opts)
	default:
		if closer != nil {
			closer.Close()
		}
		return nil, fmt.Errorf("unsupported log format: %s", config.Format)
	}

	return &SlogLogger{logger: slog.New(handler), writer: closer}, nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *SlogLogger) Debug(msg string, fields ...LogField) { l.log(slog.LevelDebug, msg, fields...) }
func (l *SlogLogger) Info(msg string, fields ...LogField)  { l.log(slog.LevelInfo, msg, fields...) }
func (l *SlogLogger) Warn(msg string, fields ...LogField)  { l.log(slog.LevelWarn, msg, fields...) }
func (l *SlogLogger) Error(msg string, fields ...LogField) { l.log(slog.LevelError, msg, fields...) }

func (l *SlogLogger) log(level slog.Level, msg string, fields ...LogField) {
	if l == nil || l.logger == nil {
		return
	}
	attrs := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// Close releases the underlying file, if logging to one.
func (l *SlogLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer != nil {
		return l.writer.Close()
	}
	return nil
}

type noopLogger struct{}

func (noopLogger) Debug(msg string, fields ...LogField) {}
func (noopLogger) Info(msg string, fields ...LogField)  {}
func (noopLogger) Warn(msg string, fields ...LogField)  {}
func (noopLogger) Error(msg string, fields ...LogField) {}

// NewNoopLogger returns a Logger that discards everything.
func NewNoopLogger() Logger { return noopLogger{} }
