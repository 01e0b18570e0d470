package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is usable before Init; it falls back to the process default logger.
var Log = slog.Default()

// Option adjusts Init.
type Option func(*options)

type options struct {
	console io.Writer
}

// WithConsole replaces stdout as the console copy of the log. A nil writer
// keeps the log in the file only, for processes that own the terminal.
func WithConsole(w io.Writer) Option {
	return func(o *options) {
		o.console = w
	}
}

func Init(logFilePath string, level slog.Level, opts ...Option) {
	o := options{console: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}
	rotator := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    10, // MB
		MaxBackups: 0,  // only one file
		MaxAge:     0,  // ignore age
		Compress:   false,
	}
	var writer io.Writer = rotator
	if o.console != nil {
		writer = io.MultiWriter(o.console, rotator)
	}
	Log = slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(Log)
}

// ParseLevel maps LOG_LEVEL values onto slog levels. Unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
