// Package fetch retrieves pages and turns them into expressions.
//
// HTTPFetcher performs the GET, follows redirects and classifies the
// response. Extract parses HTML with golang.org/x/net/html and goquery.
// PoliteFetcher spaces requests to one host with golang.org/x/time/rate,
// CachingFetcher keeps recent results in Redis, and ExpressionSource
// serves the frontier with stored expressions before going to the network.
//
// Design decision: Only transport failures are returned as errors. A page
// that answered with a non-2xx status or with a non-HTML body is a normal
// Result carrying an error tag, so callers can record it on the resource.
package fetch
