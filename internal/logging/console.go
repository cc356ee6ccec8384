package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// ConsoleOptions holds configuration for console logging.
type ConsoleOptions struct {
	Level           log.Level
	Formatter       log.Formatter
	ReportTimestamp bool
	ReportCaller    bool
	Prefix          string
	Output          io.Writer
}

// DefaultConsoleOptions returns default options for console logging.
func DefaultConsoleOptions() ConsoleOptions {
	return ConsoleOptions{
		Level:     log.InfoLevel,
		Formatter: log.TextFormatter,
		Prefix:    "tasktrack",
		Output:    os.Stderr,
	}
}

// NewConsole creates a leveled console logger.
func NewConsole(opts ConsoleOptions) *log.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	return log.NewWithOptions(out, log.Options{
		Level:           opts.Level,
		Formatter:       opts.Formatter,
		ReportTimestamp: opts.ReportTimestamp,
		ReportCaller:    opts.ReportCaller,
		Prefix:          opts.Prefix,
	})
}

// NewConsoleFromConfig builds a console logger from config strings.
// Unknown level or format values fall back to the defaults.
func NewConsoleFromConfig(level, format string, timestamps, caller bool, prefix string) *log.Logger {
	opts := DefaultConsoleOptions()
	if lvl, err := ParseLevel(level); err == nil {
		opts.Level = lvl
	}
	if f, err := ParseFormatter(format); err == nil {
		opts.Formatter = f
	}
	opts.ReportTimestamp = timestamps
	opts.ReportCaller = caller
	if prefix != "" {
		opts.Prefix = prefix
	}
	return NewConsole(opts)
}

// Discard returns a logger that writes nothing.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// ParseLevel parses a log level string.
func ParseLevel(s string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DebugLevel, nil
	case "", "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	case "fatal":
		return log.FatalLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("unknown log level: %q", s)
	}
}

// ParseFormatter parses a log format string.
func ParseFormatter(s string) (log.Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return log.TextFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	default:
		return log.TextFormatter, fmt.Errorf("unknown log format: %q", s)
	}
}
