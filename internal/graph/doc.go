// Package graph rebuilds the page graph from what the crawl persisted.
//
// The assembler walks resources and links breadth first from a set of root
// URLs. Alias resources never become nodes: an alias is followed to its
// canonical resource at the same depth, and edge targets are mapped through
// the aliases seen during the walk. Blacklisted resources are neither
// visited nor linked to.
//
// Design decision: edge targets go through the alias map once. A chain of
// two or more aliases therefore leaves the edge pointing at an intermediate
// alias id, which is still reachable from the returned alias map.
package graph
