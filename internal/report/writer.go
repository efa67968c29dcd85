package report

import (
	"io"
	"maps"
	"slices"
	"time"

	"github.com/nao1215/crawlgraph/internal/model"
)

// GraphReport is an assembled graph with the context it was built in.
type GraphReport struct {
	// Roots are the URLs the graph was built from.
	Roots []string

	// TerritoireID is the territoire whose rejections were excluded, 0 if
	// the graph was built without one.
	TerritoireID int64

	// GeneratedAt is when the graph was assembled.
	GeneratedAt time.Time

	// Graph holds the nodes and edges.
	Graph *model.Graph

	// Expressions holds node content keyed by expression id. It may be nil.
	Expressions map[int64]model.Expression

	// Annotations holds annotation values keyed by resource id. It may be nil.
	Annotations map[int64]map[string]string
}

// NewGraphReport creates a report for g.
func NewGraphReport(g *model.Graph, roots []string) *GraphReport {
	return &GraphReport{
		Roots:       roots,
		GeneratedAt: time.Now().UTC(),
		Graph:       g,
	}
}

// Title returns the title of a node, or "" when its content is unknown.
func (r *GraphReport) Title(n model.Node) string {
	if n.ExpressionID == nil || r.Expressions == nil {
		return ""
	}
	return r.Expressions[*n.ExpressionID].Title
}

// DepthCounts returns the number of nodes at each depth, by increasing depth.
func (r *GraphReport) DepthCounts() ([]int, map[int]int) {
	counts := make(map[int]int)
	for _, n := range r.Graph.Nodes {
		counts[n.Depth]++
	}
	return slices.Sorted(maps.Keys(counts)), counts
}

// OutDegree counts outgoing edges per node id.
func (r *GraphReport) OutDegree() map[int64]int {
	degree := make(map[int64]int, len(r.Graph.Nodes))
	for _, e := range r.Graph.Edges {
		degree[e.Source]++
	}
	return degree
}

// nodeURL returns the URL of id, or the bare id when it is not a node.
func (r *GraphReport) nodeURL(id int64) string {
	if n, ok := r.Graph.Nodes[id]; ok {
		return n.URL
	}
	return "#" + itoa(id)
}

// Writer defines the interface for report output.
//
// Design decision: We use an interface to allow different output formats
// and destinations. The graph command picks one from its flags and writes
// to stdout or a file with the same API.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *GraphReport) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
