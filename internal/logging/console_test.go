package logging

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
)

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want log.Level
		ok   bool
	}{
		{"debug", log.DebugLevel, true},
		{"INFO", log.InfoLevel, true},
		{"", log.InfoLevel, true},
		{"warning", log.WarnLevel, true},
		{"error", log.ErrorLevel, true},
		{"verbose", log.InfoLevel, false},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestParseFormatter(t *testing.T) {
	tests := []struct {
		in   string
		want log.Formatter
		ok   bool
	}{
		{"text", log.TextFormatter, true},
		{"json", log.JSONFormatter, true},
		{"logfmt", log.LogfmtFormatter, true},
		{"xml", log.TextFormatter, false},
	}
	for _, tt := range tests {
		got, err := ParseFormatter(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseFormatter(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestNewConsoleWritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultConsoleOptions()
	opts.Output = &buf
	opts.Formatter = log.JSONFormatter
	logger := NewConsole(opts)

	logger.Debug("hidden")
	logger.Info("task added", "user", "alice123")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug message should be filtered at info level")
	}
	if !strings.Contains(out, `"user":"alice123"`) {
		t.Errorf("expected structured field in output, got %q", out)
	}
}

func TestNewConsoleFromConfig(t *testing.T) {
	logger := NewConsoleFromConfig("debug", "bogus", false, false, "")
	if logger.GetLevel() != log.DebugLevel {
		t.Errorf("level = %v, want debug", logger.GetLevel())
	}
	if logger.GetPrefix() != "tasktrack" {
		t.Errorf("prefix = %q", logger.GetPrefix())
	}
}
