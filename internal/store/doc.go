// Package store defines the contract that crawlgraph's core components
// expect from the durable store of resources, expressions, links, tasks and
// annotations.
//
// The frontier, the worker pool and the graph assembler each declare the
// subset of this contract they use. Concrete implementations live in
// internal/database (SQLite and PostgreSQL); an in-memory implementation for
// tests lives in internal/store/storetest.
//
// Every operation is assumed to be network-latent and individually fallible.
// The only cross-process guarantee the core relies on is that PickTasks never
// hands the same task to two callers.
package store
