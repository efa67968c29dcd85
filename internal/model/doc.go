// Package model defines the data structures shared by the crawl frontier,
// the task worker pool and the graph assembler.
//
// This package contains the following main types:
//   - Resource: a URL-identified node and its crawl state
//   - Expression: content extracted from a canonical resource
//   - Link: a directed edge between two resources
//   - Task: a durable unit of pending fetch work
//   - Annotation: a territoire-scoped judgment about a resource
//   - Graph: the node/edge graph rebuilt from persisted state
//
// Design decision: We keep models in their own package so that the store
// implementations, the core components and the report writers can share them
// without import cycles.
package model
