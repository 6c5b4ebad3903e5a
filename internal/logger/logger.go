package logger

import (
	"log/slog"
	"os"

	"rag-knowledge-platform/internal/config"
)

var Logger *slog.Logger

// InitLogger sets up the process-wide JSON logger. Debug mode lowers the
// level and records source locations.
func InitLogger(cfg *config.Config) {
	level := slog.LevelInfo
	addSource := false
	if cfg.GinMode == "debug" {
		level = slog.LevelDebug
		addSource = true
	}

	Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: addSource,
	}))
	Logger.Info("Logger initialized", "level", level.String())
}

// The package-level helpers are safe before InitLogger runs; they drop the
// record instead of panicking, which matters for constructors used in tests.

func Info(msg string, args ...any) {
	if Logger != nil {
		Logger.Info(msg, args...)
	}
}

func Error(msg string, args ...any) {
	if Logger != nil {
		Logger.Error(msg, args...)
	}
}

func Debug(msg string, args ...any) {
	if Logger != nil {
		Logger.Debug(msg, args...)
	}
}

func Warn(msg string, args ...any) {
	if Logger != nil {
		Logger.Warn(msg, args...)
	}
}
