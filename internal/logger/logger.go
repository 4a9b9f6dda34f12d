// Package logger configures the process-wide slog logger with a compact
// human-readable format.
package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

var (
	globalLevel = slog.LevelInfo
	levelMutex  sync.RWMutex
)

// SetLevel sets the global log level from a string.
func SetLevel(levelStr string) {
	level := ParseLevel(levelStr)
	levelMutex.Lock()
	defer levelMutex.Unlock()
	globalLevel = level
}

// ParseLevel parses a string to an slog level. Unknown strings map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// handler writes "[15:04:05] [LEVEL] message key=value" lines to one or more
// outputs with global level filtering.
type handler struct {
	outs  []io.Writer
	attrs []slog.Attr
	mu    *sync.Mutex
}

// Handle implements slog.Handler.
func (h *handler) Handle(_ context.Context, record slog.Record) error {
	levelMutex.RLock()
	if record.Level < globalLevel {
		levelMutex.RUnlock()
		return nil
	}
	levelMutex.RUnlock()

	var b strings.Builder
	b.WriteString("[")
	b.WriteString(record.Time.Format("15:04:05"))
	b.WriteString("] [")
	b.WriteString(strings.ToUpper(record.Level.String()))
	b.WriteString("] ")
	b.WriteString(record.Message)

	for _, a := range h.attrs {
		b.WriteString(" ")
		b.WriteString(a.Key)
		b.WriteString("=")
		b.WriteString(a.Value.String())
	}
	record.Attrs(func(a slog.Attr) bool {
		b.WriteString(" ")
		b.WriteString(a.Key)
		b.WriteString("=")
		b.WriteString(a.Value.String())
		return true
	})
	b.WriteString("\n")

	line := []byte(b.String())
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, out := range h.outs {
		if out != nil {
			_, _ = out.Write(line)
		}
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &handler{outs: h.outs, attrs: merged, mu: h.mu}
}

// WithGroup implements slog.Handler. Groups are flattened.
func (h *handler) WithGroup(string) slog.Handler { return h }

// Enabled implements slog.Handler.
func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	levelMutex.RLock()
	defer levelMutex.RUnlock()
	return level >= globalLevel
}

// InitLogger installs the compact handler as the slog default, writing to
// all given outputs.
func InitLogger(outputs ...io.Writer) {
	slog.SetDefault(slog.New(&handler{outs: outputs, mu: &sync.Mutex{}}))
}
