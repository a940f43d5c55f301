package logging

import (
	"io"
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxFileSizeMB  = 50
	maxFileBackups = 10
)

// Options configure [NewLogger].
type Options struct {
	// File is the path of a rotating log file written in addition to stdout. Empty disables it.
	File string
	// Level is one of debug, info, warn or error. Unknown values mean debug.
	Level string
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger returns a text logger wrapped in a [ContextHandler]. Records go to stdout and, when
// opts.File is set, to a size-rotated and compressed file. Closing the returned io.Closer closes the file.
func NewLogger(stdout io.Writer, opts Options) (*slog.Logger, io.Closer) {
	var (
		out    = stdout
		closer io.Closer = nopCloser{}
	)
	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxFileSizeMB,
			MaxBackups: maxFileBackups,
			LocalTime:  false,
			Compress:   true,
		}
		out = io.MultiWriter(stdout, file)
		closer = file
	}
	handler := NewContextHandler(slog.NewTextHandler(out, &slog.HandlerOptions{
		AddSource:   false,
		Level:       ParseLevel(opts.Level),
		ReplaceAttr: nil,
	}))
	return slog.New(handler), closer
}

// ParseLevel maps a level name to a [slog.Level].
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
