package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/nao1215/crawlgraph/internal/model"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
	<title> Sample   Page </title>
	<meta name="description" content="A page about gardens">
	<meta property="og:site_name" content="Example">
</head>
<body>
	<nav><a href="/nav">Navigation</a></nav>
	<main>
		<h1>Gardens</h1>
		<p>Roses</p><p>Tulips</p>
		<script>var hidden = "secret";</script>
		<a href="/about#team">About</a>
		<a href="/about">About again</a>
		<a href="https://other.example/x">Other</a>
		<a href="mailto:someone@example.com">Mail</a>
		<a href="#top">Top</a>
	</main>
</body>
</html>`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("request without User-Agent")
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(samplePage))
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	mux.HandleFunc("/data.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPFetcher(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	t.Run("html page", func(t *testing.T) {
		t.Parallel()

		f := NewHTTPFetcher()
		result, err := f.Fetch(context.Background(), srv.URL+"/#section")
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if result.Resource.URL != srv.URL+"/" {
			t.Errorf("URL = %q, want fragment stripped", result.Resource.URL)
		}
		if result.Resource.OtherError != model.OtherErrorNone || result.Resource.HTTPStatus != http.StatusOK {
			t.Errorf("resource = %+v", result.Resource)
		}
		expr := result.Expression
		if expr == nil {
			t.Fatal("expected expression")
		}
		if expr.Title != "Sample Page" {
			t.Errorf("Title = %q", expr.Title)
		}
		if expr.MetaDescription != "A page about gardens" {
			t.Errorf("MetaDescription = %q", expr.MetaDescription)
		}
		wantRefs := []string{srv.URL + "/nav", srv.URL + "/about", "https://other.example/x"}
		if !slices.Equal(expr.References, wantRefs) {
			t.Errorf("References = %v, want %v", expr.References, wantRefs)
		}
		if !slices.Equal(result.Links, wantRefs) {
			t.Errorf("Links = %v, want %v", result.Links, wantRefs)
		}
		if len(expr.Aliases) != 0 {
			t.Errorf("Aliases = %v, want none", expr.Aliases)
		}
	})

	t.Run("redirect records the requested URL as alias", func(t *testing.T) {
		t.Parallel()

		f := NewHTTPFetcher()
		result, err := f.Fetch(context.Background(), srv.URL+"/old")
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if result.Resource.URL != srv.URL+"/" {
			t.Errorf("URL = %q", result.Resource.URL)
		}
		if !result.Redirected(srv.URL + "/old") {
			t.Error("Redirected() = false")
		}
		if result.Expression == nil || !slices.Contains(result.Expression.Aliases, srv.URL+"/old") {
			t.Errorf("expression = %+v", result.Expression)
		}
	})

	t.Run("error status", func(t *testing.T) {
		t.Parallel()

		f := NewHTTPFetcher()
		result, err := f.Fetch(context.Background(), srv.URL+"/missing")
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if result.Resource.OtherError != model.OtherErrorHTTPStatus || result.Resource.HTTPStatus != http.StatusNotFound {
			t.Errorf("resource = %+v", result.Resource)
		}
		if result.Expression != nil {
			t.Error("error page must not have an expression")
		}
	})

	t.Run("redirect loop stops on last response", func(t *testing.T) {
		t.Parallel()

		f := NewHTTPFetcher()
		result, err := f.Fetch(context.Background(), srv.URL+"/loop")
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if result.Resource.HTTPStatus != http.StatusFound || result.Resource.OtherError != model.OtherErrorHTTPStatus {
			t.Errorf("resource = %+v", result.Resource)
		}
	})

	t.Run("non html", func(t *testing.T) {
		t.Parallel()

		f := NewHTTPFetcher()
		result, err := f.Fetch(context.Background(), srv.URL+"/data.json")
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if result.Resource.OtherError != model.OtherErrorNotHTML {
			t.Errorf("OtherError = %q", result.Resource.OtherError)
		}
		if result.Expression != nil {
			t.Error("non-HTML page must not have an expression")
		}
	})

	t.Run("filter drops references", func(t *testing.T) {
		t.Parallel()

		f := NewHTTPFetcher(WithFilter(Filter{Ignore: []string{"/about"}}))
		result, err := f.Fetch(context.Background(), srv.URL+"/")
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if !slices.Equal(result.Expression.References, []string{srv.URL + "/nav", "https://other.example/x"}) {
			t.Errorf("References = %v", result.Expression.References)
		}
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		t.Parallel()

		_, err := NewHTTPFetcher().Fetch(context.Background(), "ftp://files.example/")
		if !errors.Is(err, ErrUnsupportedScheme) {
			t.Errorf("expected ErrUnsupportedScheme, got %v", err)
		}
	})

	t.Run("transport error", func(t *testing.T) {
		t.Parallel()

		closed := httptest.NewServer(http.NotFoundHandler())
		closed.Close()

		_, err := NewHTTPFetcher().Fetch(context.Background(), closed.URL)
		if err == nil {
			t.Error("expected error for closed server")
		}
	})

	t.Run("custom user agent", func(t *testing.T) {
		t.Parallel()

		got := make(chan string, 1)
		ua := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got <- r.Header.Get("User-Agent")
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html><body>hi</body></html>"))
		}))
		defer ua.Close()

		if _, err := NewHTTPFetcher(WithUserAgent("tester/1")).Fetch(context.Background(), ua.URL); err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if v := <-got; v != "tester/1" {
			t.Errorf("User-Agent = %q", v)
		}
	})
}

func TestIsHTML(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"":                          true,
		"text/html":                 true,
		"text/html; charset=utf-8":  true,
		"application/xhtml+xml":     true,
		"application/json":          false,
		"image/png":                 false,
		"text/plain; charset=utf-8": false,
	}
	for ct, want := range tests {
		if got := isHTML(ct); got != want {
			t.Errorf("isHTML(%q) = %v, want %v", ct, got, want)
		}
	}
}

func TestExtract(t *testing.T) {
	t.Parallel()

	t.Run("main content excludes boilerplate", func(t *testing.T) {
		t.Parallel()

		expr, err := Extract("https://example.com/", []byte(samplePage))
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
		if !strings.Contains(expr.MainText, "Roses Tulips") {
			t.Errorf("MainText = %q, block text should be separated", expr.MainText)
		}
		if strings.Contains(expr.MainText, "secret") || strings.Contains(expr.MainHTML, "<script") {
			t.Error("scripts leaked into main content")
		}
		if strings.Contains(expr.MainText, "Navigation") {
			t.Error("navigation leaked into main content")
		}
		if expr.Meta["og:site_name"] != "Example" {
			t.Errorf("Meta = %v", expr.Meta)
		}
		if expr.FullHTML != samplePage {
			t.Error("FullHTML should be the raw document")
		}
	})

	t.Run("title falls back to h1", func(t *testing.T) {
		t.Parallel()

		expr, err := Extract("https://example.com/", []byte(`<html><body><h1>Heading</h1><p>x</p></body></html>`))
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
		if expr.Title != "Heading" {
			t.Errorf("Title = %q", expr.Title)
		}
	})

	t.Run("canonical and og:url become aliases", func(t *testing.T) {
		t.Parallel()

		page := `<html><head>
			<link rel="canonical" href="/canonical">
			<meta property="og:url" content="https://example.com/og">
		</head><body></body></html>`
		expr, err := Extract("https://example.com/page", []byte(page))
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
		want := []string{"https://example.com/canonical", "https://example.com/og"}
		if !slices.Equal(expr.Aliases, want) {
			t.Errorf("Aliases = %v, want %v", expr.Aliases, want)
		}
	})

	t.Run("base href", func(t *testing.T) {
		t.Parallel()

		page := `<html><head><base href="https://cdn.example/docs/"></head>
			<body><a href="intro">Intro</a></body></html>`
		expr, err := Extract("https://example.com/", []byte(page))
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
		if !slices.Equal(expr.References, []string{"https://cdn.example/docs/intro"}) {
			t.Errorf("References = %v", expr.References)
		}
	})
}

func TestFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		filter Filter
		ref    string
		want   bool
	}{
		{"zero value allows", Filter{}, "https://a.example/x", true},
		{"ignore prefix", Filter{Ignore: []string{"/admin/*"}}, "https://a.example/admin/users", false},
		{"ignore prefix root", Filter{Ignore: []string{"/admin/*"}}, "https://a.example/admin", false},
		{"ignore extension", Filter{Ignore: []string{"*.pdf"}}, "https://a.example/docs/file.pdf", false},
		{"ignore does not match", Filter{Ignore: []string{"*.pdf"}}, "https://a.example/docs/file.html", true},
		{"follow match", Filter{Follow: []string{"/blog/*"}}, "https://a.example/blog/post", true},
		{"follow miss", Filter{Follow: []string{"/blog/*"}}, "https://a.example/shop", false},
		{"ignore wins over follow", Filter{Ignore: []string{"/blog/draft*"}, Follow: []string{"/blog/*"}}, "https://a.example/blog/draft1", false},
		{"empty path is root", Filter{Follow: []string{"/"}}, "https://a.example", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.filter.Allows(tt.ref); got != tt.want {
				t.Errorf("Allows(%q) = %v, want %v", tt.ref, got, tt.want)
			}
		})
	}
}
