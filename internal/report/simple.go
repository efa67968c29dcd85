package report

import (
	"fmt"
	"io"
	"strings"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose lists every node and edge instead of a summary.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists every node and edge.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *GraphReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeDepths(&sb, report)
	if w.verbose {
		w.writeNodes(&sb, report)
		w.writeEdges(&sb, report)
	}
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *GraphReport) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                           CRAWL GRAPH\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	for _, root := range report.Roots {
		fmt.Fprintf(sb, "Root:       %s\n", root)
	}
	if report.TerritoireID != 0 {
		fmt.Fprintf(sb, "Territoire: %d\n", report.TerritoireID)
	}
	fmt.Fprintf(sb, "Generated:  %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Nodes:      %d\n", len(report.Graph.Nodes))
	fmt.Fprintf(sb, "Edges:      %d\n", len(report.Graph.Edges))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeDepths(sb *strings.Builder, report *GraphReport) {
	depths, counts := report.DepthCounts()
	if len(depths) == 0 {
		return
	}
	section(sb, "DEPTHS")
	for _, d := range depths {
		fmt.Fprintf(sb, "  depth %-3d %d node(s)\n", d, counts[d])
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeNodes(sb *strings.Builder, report *GraphReport) {
	section(sb, "NODES")
	for _, n := range report.Graph.SortedNodes() {
		fmt.Fprintf(sb, "  [%d] %s", n.Depth, n.URL)
		if title := report.Title(n); title != "" {
			fmt.Fprintf(sb, " (%s)", title)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeEdges(sb *strings.Builder, report *GraphReport) {
	section(sb, "EDGES")
	if len(report.Graph.Edges) == 0 {
		sb.WriteString("  No edges\n\n")
		return
	}
	for _, e := range report.Graph.Edges {
		fmt.Fprintf(sb, "  %s -> %s\n", report.nodeURL(e.Source), report.nodeURL(e.Target))
	}
	sb.WriteString("\n")
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}
