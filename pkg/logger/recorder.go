package logger

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// RecordingHandler is a slog.Handler that keeps every record as one line of the form
// "[index] LEVEL: message key=value, ..." without timestamps, so tests can compare
// log output exactly.
type RecordingHandler struct {
	state *recording
	attrs []slog.Attr
	group string

	ignoreDebug bool
}

type recording struct {
	mu       sync.Mutex
	lines    []string
	messages []string
}

type RecordingOption func(*RecordingHandler)

// IgnoreDebug drops DEBUG records.
func IgnoreDebug() RecordingOption {
	return func(h *RecordingHandler) {
		h.ignoreDebug = true
	}
}

func NewRecordingHandler(opts ...RecordingOption) *RecordingHandler {
	h := &RecordingHandler{state: &recording{}}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Recording returns a Logger writing to a new RecordingHandler.
func Recording(opts ...RecordingOption) (*SlogHandler, *RecordingHandler) {
	h := NewRecordingHandler(opts...)
	return New(h), h
}

// Lines returns the recorded lines in order.
func (h *RecordingHandler) Lines() []string {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	return slices.Clone(h.state.lines)
}

// Messages returns the recorded messages without index, level or attributes.
func (h *RecordingHandler) Messages() []string {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	return slices.Clone(h.state.messages)
}

func (h *RecordingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level != slog.LevelDebug || !h.ignoreDebug
}

//nolint:gocritic
func (h *RecordingHandler) Handle(_ context.Context, r slog.Record) error {
	if r.Level == slog.LevelDebug && h.ignoreDebug {
		return nil
	}

	parts := make([]string, 0, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		parts = append(parts, formatAttr(a, ""))
	}
	r.Attrs(func(a slog.Attr) bool {
		parts = append(parts, formatAttr(a, h.group))
		return true
	})

	h.state.mu.Lock()
	defer h.state.mu.Unlock()

	line := fmt.Sprintf("[%d] %s: %s", len(h.state.lines), r.Level, r.Message)
	if len(parts) > 0 {
		line += " " + strings.Join(parts, ", ")
	}
	h.state.lines = append(h.state.lines, line)
	h.state.messages = append(h.state.messages, r.Message)
	return nil
}

func (h *RecordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = slices.Clip(h.attrs)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + a.Key
		}
		c.attrs = append(c.attrs, a)
	}
	return &c
}

func (h *RecordingHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.group = h.group + name + "."
	return &c
}

func formatAttr(a slog.Attr, prefix string) string {
	if a.Value.Kind() == slog.KindGroup {
		parts := make([]string, 0, len(a.Value.Group()))
		for _, ga := range a.Value.Group() {
			parts = append(parts, formatAttr(ga, prefix+a.Key+"."))
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprintf("%s%s=%v", prefix, a.Key, a.Value)
}
