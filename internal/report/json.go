package report

import (
	"encoding/json"
	"io"
	"slices"
	"time"

	"github.com/nao1215/crawlgraph/internal/model"
)

// JSONWriter outputs reports in JSON format.
// This format is designed for tool integration and programmatic processing.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is written when not empty.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the crawlgraph version in the output.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// jsonNode is a node with what the report knows about it.
type jsonNode struct {
	model.Node
	Title       string            `json:"title,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// jsonReport is the serialized form of a GraphReport.
type jsonReport struct {
	Version      string             `json:"version,omitempty"`
	Roots        []string           `json:"roots"`
	TerritoireID int64              `json:"territoire_id,omitempty"`
	GeneratedAt  time.Time          `json:"generated_at"`
	Nodes        []jsonNode         `json:"nodes"`
	Edges        []model.Edge       `json:"edges"`
	Expressions  []model.Expression `json:"expressions,omitempty"`
}

// Write outputs the report in JSON format.
func (w *JSONWriter) Write(report *GraphReport) (int, error) {
	out := jsonReport{
		Version:      w.version,
		Roots:        report.Roots,
		TerritoireID: report.TerritoireID,
		GeneratedAt:  report.GeneratedAt,
		Nodes:        make([]jsonNode, 0, len(report.Graph.Nodes)),
		Edges:        report.Graph.Edges,
	}
	if out.Roots == nil {
		out.Roots = []string{}
	}
	if out.Edges == nil {
		out.Edges = []model.Edge{}
	}
	for _, n := range report.Graph.SortedNodes() {
		out.Nodes = append(out.Nodes, jsonNode{
			Node:        n,
			Title:       report.Title(n),
			Annotations: report.Annotations[n.ID],
		})
	}
	if len(report.Expressions) > 0 {
		ids := make([]int64, 0, len(report.Expressions))
		for id := range report.Expressions {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			out.Expressions = append(out.Expressions, report.Expressions[id])
		}
	}
	return w.writeJSON(out)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
