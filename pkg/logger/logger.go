package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process-wide logger. Debug lowers the level to
// DebugLevel; otherwise InfoLevel is used.
func NewLogger(debug bool) *zap.Logger {
	logger, err := build(debug, "stderr")
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	return logger
}

// NewFileLogger writes to path instead of stderr, for use while a
// full-screen UI owns the terminal. It fails when path cannot be opened.
func NewFileLogger(path string, debug bool) (*zap.Logger, error) {
	logger, err := build(debug, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return logger, nil
}

func build(debug bool, output string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()

	if debug {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	config.DisableStacktrace = true
	config.OutputPaths = []string{output}

	return config.Build()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
