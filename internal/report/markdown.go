package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *GraphReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeDepths(md, report)
	w.writeNodes(md, report)
	w.writeEdges(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with build information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *GraphReport) {
	md.H1("Crawl Graph")
	md.PlainText("")

	territoire := "-"
	if report.TerritoireID != 0 {
		territoire = strconv.FormatInt(report.TerritoireID, 10)
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Generated", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
			{"Territoire", territoire},
			{"Nodes", strconv.Itoa(len(report.Graph.Nodes))},
			{"Edges", strconv.Itoa(len(report.Graph.Edges))},
		},
	})
	md.PlainText("")

	md.H2("Roots")
	md.PlainText("")
	if len(report.Roots) == 0 {
		md.PlainText("No roots.")
	} else {
		md.BulletList(report.Roots...)
	}
	md.PlainText("")
}

// writeDepths writes a mermaid pie chart of the nodes per depth.
func (w *MarkdownWriter) writeDepths(md *markdown.Markdown, report *GraphReport) {
	if len(report.Graph.Nodes) == 0 {
		md.Note("The graph is empty. The roots may not have been crawled yet.")
		md.PlainText("")
		return
	}

	depths, counts := report.DepthCounts()
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Nodes per depth"),
		piechart.WithShowData(true),
	)
	for _, d := range depths {
		chart.LabelAndIntValue("depth "+strconv.Itoa(d), uint64(counts[d]))
	}

	md.H2("Depths")
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeNodes writes one table row per node.
func (w *MarkdownWriter) writeNodes(md *markdown.Markdown, report *GraphReport) {
	if len(report.Graph.Nodes) == 0 {
		return
	}

	md.H2("Nodes")
	md.PlainText("")

	in := report.Graph.InDegree()
	out := report.OutDegree()
	nodes := report.Graph.SortedNodes()
	rows := make([][]string, len(nodes))
	for i, n := range nodes {
		title := report.Title(n)
		if title == "" {
			title = "-"
		}
		rows[i] = []string{
			strconv.FormatInt(n.ID, 10),
			strconv.Itoa(n.Depth),
			n.URL,
			truncateString(title, 60),
			strconv.Itoa(in[n.ID]),
			strconv.Itoa(out[n.ID]),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Depth", "URL", "Title", "In", "Out"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeEdges writes one table row per edge.
func (w *MarkdownWriter) writeEdges(md *markdown.Markdown, report *GraphReport) {
	md.H2("Edges")
	md.PlainText("")

	if len(report.Graph.Edges) == 0 {
		md.PlainText("No edges.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Graph.Edges))
	for i, e := range report.Graph.Edges {
		rows[i] = []string{report.nodeURL(e.Source), report.nodeURL(e.Target)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Source", "Target"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [crawlgraph](https://github.com/nao1215/crawlgraph)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
