// Package logging configures the application's structured and human-readable
// loggers on top of log/slog.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

var structuredLogger *slog.Logger
var humanReadableLogger *slog.Logger

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

func replaceLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		levelLabel, exists := levelNames[level]
		if !exists {
			levelLabel = level.String()
		}
		a.Value = slog.StringValue(levelLabel)
	}
	return a
}

// Init initializes the logging system with structured (JSON to stdout) and
// human-readable (text to stderr) loggers and installs the structured logger
// as the slog default.
func Init() {
	SetOutput(os.Stdout, os.Stderr)
}

// SetOutput reconfigures both loggers to write to the given writers.
func SetOutput(structuredOutput, humanReadableOutput io.Writer) {
	structuredLogger = slog.New(slog.NewJSONHandler(structuredOutput, &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: replaceLevelNames,
	}))
	humanReadableLogger = slog.New(slog.NewTextHandler(humanReadableOutput, &slog.HandlerOptions{
		Level:       slog.LevelInfo,
		ReplaceAttr: replaceLevelNames,
	}))
	slog.SetDefault(structuredLogger)
}

// Structured returns the globally configured structured (JSON) logger.
// Returns nil if Init() has not been called.
func Structured() *slog.Logger {
	return structuredLogger
}

// HumanReadable returns the globally configured human-readable logger.
func HumanReadable() *slog.Logger {
	return humanReadableLogger
}

// ForService creates a logger with the 'service' attribute added, using the
// global structured logger as base. Returns nil if Init() has not been called.
func ForService(serviceName string) *slog.Logger {
	if structuredLogger == nil {
		return nil
	}
	return structuredLogger.With("service", serviceName)
}

// Debug logs a debug message using the default slog logger.
func Debug(msg string, args ...any) {
	slog.Debug(msg, args...)
}

// Info logs an info message using the default slog logger.
func Info(msg string, args ...any) {
	slog.Info(msg, args...)
}

// Warn logs a warning message using the default slog logger.
func Warn(msg string, args ...any) {
	slog.Warn(msg, args...)
}

// Error logs an error message using the default slog logger.
func Error(msg string, args ...any) {
	slog.Error(msg, args...)
}

// Fatal logs a fatal message using the custom Fatal level and then exits.
func Fatal(msg string, args ...any) {
	slog.Log(context.TODO(), LevelFatal, msg, args...)
	os.Exit(1)
}

// NewFileLogger creates a slog.Logger writing JSON logs to filePath with
// lumberjack rotation. It returns the logger, a close function for the
// underlying writer, and an error if directory setup fails.
func NewFileLogger(filePath, serviceName string, level slog.Level) (*slog.Logger, func() error, error) {
	logDir := filepath.Dir(filePath)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	logWriter := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    100, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
	}

	fileHandler := slog.NewJSONHandler(logWriter, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})

	logger := slog.New(fileHandler).With("service", serviceName)
	return logger, logWriter.Close, nil
}
