// Package frontier expands a crawl from seed URLs, one depth layer at a time.
//
// A Session owns three URL sets: todo, doing and done. Each layer takes every
// URL in todo, fetches them concurrently and waits for all of them before the
// next layer starts. A page is written and expanded only when the approval
// policy accepts it, and the crawl goes one layer deeper only when at least
// one page of the current layer was approved.
//
// Sessions never share state. Two sessions over the same store may fetch the
// same URL; the store's find-or-create operations absorb that.
package frontier
