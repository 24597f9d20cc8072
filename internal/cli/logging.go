package cli

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger logs to stderr, or to a size-rotated file when path is set.
func newLogger(stderr io.Writer, path string, verbose bool) (*slog.Logger, io.Closer) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	if path == "" {
		return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})), nil
	}
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	if !verbose {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: level})), rotator
}
