package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// prettyHandler renders one header line per record followed by indented
// key/value bullets. Job, stage, and segment attributes fold into the header.
type prettyHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     slog.Leveler
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

func newPrettyHandler(w io.Writer, lvl slog.Leveler, addSource bool) slog.Handler {
	return &prettyHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	var fields fieldSet
	fields.addAll(h.groups, h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		fields.add(h.groups, attr)
		return true
	})

	header := fields.take(FieldComponent, FieldJobID, FieldStage, FieldSegment)
	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}

	var buf bytes.Buffer
	buf.Grow(128 + len(fields.items)*32)
	fmt.Fprintf(&buf, "%s %s", consoleTime(record.Time), levelLabel(record.Level))
	if c := header[FieldComponent]; c != "" {
		fmt.Fprintf(&buf, " [%s]", c)
	}
	if subject := FormatSubject(header[FieldJobID], header[FieldStage], header[FieldSegment]); subject != "" {
		buf.WriteString(" " + subject)
	}
	buf.WriteString(" - " + message)
	if src := record.Source(); h.addSource && src != nil {
		fmt.Fprintf(&buf, " [%s:%d]", filepath.Base(src.File), src.Line)
	}
	buf.WriteByte('\n')
	for _, f := range fields.items {
		fmt.Fprintf(&buf, "    - %s: %s\n", f.key, quotedText(f.value))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	clone.attrs = append(clone.attrs, attrs...)
	return clone
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *prettyHandler) clone() *prettyHandler {
	return &prettyHandler{
		mu:        h.mu,
		writer:    h.writer,
		level:     h.level,
		addSource: h.addSource,
		attrs:     append([]slog.Attr(nil), h.attrs...),
		groups:    append([]string(nil), h.groups...),
	}
}

// FormatSubject builds the "Job <id> (stage) #segment" prefix used in console output.
func FormatSubject(jobID, stage, segment string) string {
	jobID = strings.TrimSpace(jobID)
	stage = strings.TrimSpace(stage)
	segment = strings.TrimSpace(segment)
	var parts []string
	if jobID != "" {
		if len(jobID) > 8 {
			jobID = jobID[:8]
		}
		parts = append(parts, "Job "+jobID)
	}
	if stage != "" {
		parts = append(parts, "("+stage+")")
	}
	if segment != "" {
		parts = append(parts, "#"+segment)
	}
	return strings.Join(parts, " ")
}

type field struct {
	key   string
	value slog.Value
}

// fieldSet collects flattened attributes in first-seen order. A repeated key
// keeps its original position and takes the latest value.
type fieldSet struct {
	items []field
	index map[string]int
}

func (s *fieldSet) addAll(prefix []string, attrs []slog.Attr) {
	for _, attr := range attrs {
		s.add(prefix, attr)
	}
}

func (s *fieldSet) add(prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		if attr.Key != "" {
			prefix = append(slices.Clone(prefix), attr.Key)
		}
		s.addAll(prefix, attr.Value.Group())
		return
	}
	key := strings.Join(append(slices.Clone(prefix), attr.Key), ".")
	if key == "" {
		return
	}
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if pos, ok := s.index[key]; ok {
		s.items[pos].value = attr.Value
		return
	}
	s.index[key] = len(s.items)
	s.items = append(s.items, field{key: key, value: attr.Value})
}

// take removes the named keys from the set and returns their plain values.
func (s *fieldSet) take(keys ...string) map[string]string {
	out := make(map[string]string, len(keys))
	kept := s.items[:0]
	for _, f := range s.items {
		if slices.Contains(keys, f.key) {
			out[f.key] = plainText(f.value)
			continue
		}
		kept = append(kept, f)
	}
	s.items = kept
	s.index = nil
	return out
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
