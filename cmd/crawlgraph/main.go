// Package main provides the entry point for the crawlgraph CLI.
//
// crawlgraph crawls web pages from seed URLs, keeps the pages that match a
// set of keywords, and assembles the link graph between the stored pages.
//
// Usage:
//
//	crawlgraph crawl --keywords river https://example.com/
//	crawlgraph enqueue --territoire news https://example.com/
//	crawlgraph worker --follow-up
//	crawlgraph graph --markdown https://example.com/
//
// See --help for all available options.
package main

func main() {
	Execute()
}
