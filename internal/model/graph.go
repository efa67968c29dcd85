package model

import "sort"

// Node is a canonical resource of an assembled graph.
type Node struct {
	Resource

	// Depth is the BFS distance from the closest root, as first observed.
	Depth int `json:"depth"`
}

// Edge is a directed edge between two canonical node ids.
type Edge struct {
	Source int64 `json:"source"`
	Target int64 `json:"target"`
}

// Graph is the abstract page graph rebuilt from persisted state.
type Graph struct {
	// Nodes maps resource ids to canonical nodes.
	Nodes map[int64]Node

	// Edges is sorted by source then target.
	Edges []Edge
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes: make(map[int64]Node),
		Edges: make([]Edge, 0),
	}
}

// SortedNodes returns the nodes ordered by depth then id.
func (g *Graph) SortedNodes() []Node {
	nodes := make([]Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Depth != nodes[j].Depth {
			return nodes[i].Depth < nodes[j].Depth
		}
		return nodes[i].ID < nodes[j].ID
	})
	return nodes
}

// InDegree counts incoming edges per node id.
func (g *Graph) InDegree() map[int64]int {
	degree := make(map[int64]int, len(g.Nodes))
	for _, e := range g.Edges {
		degree[e.Target]++
	}
	return degree
}
