// Package approve decides whether a fetched page belongs to a crawl.
//
// A Policy is a pure function of the crawl depth, the words the user is
// looking for and the extracted expression. Both the frontier and the worker
// pool evaluate it before writing anything or expanding a page's links.
package approve
