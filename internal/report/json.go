package report

import (
	"encoding/json"
	"fmt"
	"io"

	"sketchd/internal/pipeline"
)

// JSONWriter renders reports as indented JSON for tool integration.
type JSONWriter struct {
	out    io.Writer
	indent string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithCompact disables indentation.
func WithCompact() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = ""
	}
}

// NewJSONWriter creates a JSONWriter. Output is indented with two spaces
// unless WithCompact is given.
func NewJSONWriter(out io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{out: out, indent: "  "}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteSession writes res as a JSON object.
func (w *JSONWriter) WriteSession(res *pipeline.Result) error {
	return w.encode(res)
}

// WriteHistory writes h as a JSON object.
func (w *JSONWriter) WriteHistory(h *History) error {
	return w.encode(h)
}

func (w *JSONWriter) encode(v any) error {
	enc := json.NewEncoder(w.out)
	if w.indent != "" {
		enc.SetIndent("", w.indent)
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
