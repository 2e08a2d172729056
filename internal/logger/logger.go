// Package logger routes pipeline events to a zap logger.
//
// The line display and the TUI own the terminal, so log output only goes to
// a file given with -log. Without one the logger is a no-op.
package logger

import (
	"github.com/handiism/wfmu-downloader/internal/download"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a JSON logger appending to path. An empty path gives a no-op
// logger. verbose enables debug level, which carries LevelVerbose events.
func New(path string, verbose bool) (*zap.Logger, error) {
	if path == "" {
		return zap.NewNop(), nil
	}

	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Sampling = nil
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// EventHandler returns a download progress callback writing to l.
func EventHandler(l *zap.Logger) func(download.ProgressEvent) {
	return func(event download.ProgressEvent) {
		switch event.Level {
		case download.LevelVerbose:
			l.Debug(event.Message)
		case download.LevelWarning:
			l.Warn(event.Message)
		case download.LevelError:
			l.Error(event.Message)
		case download.LevelSuccess:
			l.Info(event.Message, zap.Bool("success", true))
		default:
			l.Info(event.Message)
		}
	}
}
