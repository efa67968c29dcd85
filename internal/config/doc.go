// Package config provides configuration structures and utilities for
// crawlgraph. It defines the store, fetch, frontier and worker settings,
// the territoires a crawl works in, and the .crawlgraph YAML file they can
// be loaded from.
package config
