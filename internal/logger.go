package internal

import (
	"io"
	"log/slog"
	"os"
)

// Returns the log level derived from the logging switches.
func LogLevel() slog.Level {
	if IsDebug() {
		return slog.LevelDebug
	}
	if IsQuiet() {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// Creates a logger reflecting the current logging switches.
//
// Terminals get text records; anything else, such as a service manager's
// journal, gets JSON. Verbose mode adds source locations.
func NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     LogLevel(),
		AddSource: IsVerbose(),
	}

	var handler slog.Handler
	if f, ok := w.(*os.File); ok && isatty(f) {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With("app", Name)
}

// Whether the given file is an interactive terminal.
func isatty(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
