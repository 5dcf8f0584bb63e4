package logging

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// LogCallback receives each entry after it is buffered. The API layer uses
// it to publish log events without this package importing the bus.
type LogCallback func(entry LogEntry)

// BufferHandler records into the history buffer and forwards to the
// callback. Both are resolved per record, so loggers created before
// Initialize start recording once it runs.
type BufferHandler struct {
	level  slog.Leveler
	module string
	attrs  map[string]any
	group  string
}

// NewBufferHandler returns a handler gated on level.
func NewBufferHandler(level slog.Leveler) *BufferHandler {
	return &BufferHandler{level: level, module: "app"}
}

// Enabled implements slog.Handler.
func (h *BufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *BufferHandler) Handle(_ context.Context, r slog.Record) error {
	buffer, callback := reg.sinks()
	if buffer == nil {
		return nil
	}

	entry := LogEntry{
		Timestamp:  r.Time,
		Level:      levelName(r.Level),
		Module:     h.module,
		Message:    r.Message,
		Attributes: make(map[string]any, len(h.attrs)+r.NumAttrs()),
	}
	for k, v := range h.attrs {
		entry.Attributes[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "module" && h.group == "" {
			entry.Module = a.Value.String()
			return true
		}
		flattenAttr(entry.Attributes, h.group, a)
		return true
	})

	entry = buffer.Write(entry)
	if callback != nil {
		callback(entry)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *BufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make(map[string]any, len(h.attrs)+len(attrs))
	for k, v := range h.attrs {
		next.attrs[k] = v
	}
	for _, a := range attrs {
		if a.Key == "module" && h.group == "" {
			next.module = a.Value.String()
			continue
		}
		flattenAttr(next.attrs, h.group, a)
	}
	return &next
}

// WithGroup implements slog.Handler.
func (h *BufferHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = h.group + name + "."
	return &next
}

// flattenAttr stores a under prefix, using dotted keys for groups. Values
// are kept JSON friendly.
func flattenAttr(out map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	key := prefix + a.Key
	switch v.Kind() {
	case slog.KindGroup:
		for _, sub := range v.Group() {
			flattenAttr(out, key+".", sub)
		}
	case slog.KindTime:
		out[key] = v.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		out[key] = v.Duration().String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			out[key] = err.Error()
			return
		}
		out[key] = v.Any()
	default:
		out[key] = v.Any()
	}
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	}
	return "debug"
}

// FormatLogLine renders entry as a single line with sorted key=value pairs.
func FormatLogLine(entry LogEntry) string {
	line := fmt.Sprintf("%s [%s] [%s] %s",
		entry.Timestamp.Format(time.RFC3339Nano),
		strings.ToUpper(entry.Level), entry.Module, entry.Message)

	keys := make([]string, 0, len(entry.Attributes))
	for k := range entry.Attributes {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var sb strings.Builder
	sb.WriteString(line)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, entry.Attributes[k])
	}
	return sb.String()
}
