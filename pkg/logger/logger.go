// Package logger provides slog loggers with level-based coloring for
// terminal output: errors in red, warnings in yellow.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
)

// NewDefaultLogger creates a logger writing colored output to stderr.
func NewDefaultLogger(level slog.Level) *slog.Logger {
	return NewLogger(os.Stderr, level)
}

// NewLogger creates a logger with color support using a custom writer.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(&colorHandler{w: w, level: level})
}

type colorHandler struct {
	w     io.Writer
	level slog.Level
	attrs []slog.Attr
	mu    sync.Mutex
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var color string
	switch r.Level {
	case slog.LevelError:
		color = colorRed
	case slog.LevelWarn:
		color = colorYellow
	}

	var buf strings.Builder
	buf.WriteString(r.Time.Format("2006-01-02 15:04:05"))
	buf.WriteByte(' ')
	buf.WriteString(r.Level.String())
	buf.WriteByte(' ')
	if color != "" {
		buf.WriteString(color)
	}
	buf.WriteString(r.Message)
	if color != "" {
		buf.WriteString(colorReset)
	}
	for _, attr := range h.attrs {
		fmt.Fprintf(&buf, " %s=%v", attr.Key, attr.Value)
	}
	r.Attrs(func(attr slog.Attr) bool {
		fmt.Fprintf(&buf, " %s=%v", attr.Key, attr.Value)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, buf.String())
	return err
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &colorHandler{w: h.w, level: h.level, attrs: merged}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	// Groups are flattened; attr keys keep their original names.
	return h
}
