// Package logger - Structured logging for the pose pipeline.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger writing debug and info entries to stdout and warnings
// and errors to stderr. Debug entries are only emitted when debug is set.
func New(debug bool) *zap.Logger {
	return NewWithSyncers(debug, zapcore.Lock(os.Stdout), zapcore.Lock(os.Stderr))
}

// NewWithSyncers builds the tee core of New on arbitrary writers.
//
// Arguments:
//   - debug: Enables debug entries and the development encoder.
//   - stdout: Receives debug and info entries.
//   - stderr: Receives warn, error and fatal entries.
//
// Returns:
//   - *zap.Logger: The logger.
func NewWithSyncers(debug bool, stdout, stderr zapcore.WriteSyncer) *zap.Logger {
	// debug and info level enabler
	lowLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		if debug && level == zapcore.DebugLevel {
			return true
		}
		return level == zapcore.InfoLevel
	})

	// warn, error and fatal level enabler
	highLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level >= zapcore.WarnLevel
	})

	encoderConfig := zap.NewProductionEncoderConfig()
	if debug {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), stdout, lowLevel),
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), stderr, highLevel),
	)
	return zap.New(core)
}
