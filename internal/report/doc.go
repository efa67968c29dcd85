// Package report writes assembled crawl graphs.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: Markdown tables for sharing
//
// Design decision: The report data (GraphReport) only references model
// types, so writers never reach back into the store. Whatever a format
// needs (titles, annotations) is gathered before writing.
package report
