// Package logging configures colored structured logging with tint.
//
// Usage:
//
//	logging.Setup()                          // INFO level, from LOG_LEVEL env
//	logging.SetupWithLevel(slog.LevelDebug)  // explicit level override
//	logging.SetupWithOptions(logging.Options{Level: "debug", File: "habitly.log"})
//
// Environment variables:
//
//	LOG_LEVEL: debug, info, warn, error (default: info)
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the level and an optional rotating log file.
type Options struct {
	// Level is debug, info, warn or error. Empty reads LOG_LEVEL.
	Level string
	// File, when set, also receives every record, rotated by size.
	File string
}

// Setup configures colored logging at the level specified by LOG_LEVEL env var
// (default: INFO).
func Setup() {
	SetupWithLevel(levelFromEnv())
}

// SetupWithLevel configures colored logging at the given level.
func SetupWithLevel(level slog.Level) {
	slog.SetDefault(slog.New(newHandler(os.Stderr, level, true)))
}

// SetupWithOptions configures logging from opts. The returned closer flushes
// the log file, if any.
func SetupWithOptions(opts Options) io.Closer {
	level := levelFromEnv()
	if opts.Level != "" {
		level = ParseLevel(opts.Level)
	}

	if opts.File == "" {
		SetupWithLevel(level)
		return nopCloser{}
	}

	file := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	slog.SetDefault(slog.New(&teeHandler{
		handlers: []slog.Handler{
			newHandler(os.Stderr, level, true),
			newHandler(file, level, false),
		},
	}))
	return file
}

func newHandler(w io.Writer, level slog.Level, color bool) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  true,
		NoColor:    !color,
	})
}

// ParseLevel maps a level name to a slog.Level, defaulting to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func levelFromEnv() slog.Level {
	return ParseLevel(os.Getenv("LOG_LEVEL"))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
