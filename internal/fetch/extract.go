package fetch

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/crawlgraph/internal/model"
)

// boilerplate is removed from the main content.
const boilerplate = "script, style, nav, noscript, template, iframe"

// Extract builds an expression from an HTML document fetched at pageURL.
//
// Design decision: The document is parsed once with golang.org/x/net/html
// and wrapped in goquery for selection. Text is collected by walking the
// node tree so that adjacent block elements stay separated by a space.
func Extract(pageURL string, body []byte) (*model.Expression, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}

	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	// <base href> changes how relative links resolve.
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if u, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(u)
		}
	}

	expr := &model.Expression{
		URL:      pageURL,
		FullHTML: string(body),
		Meta:     make(map[string]string),
	}

	expr.Title = collapseSpace(doc.Find("title").First().Text())
	if expr.Title == "" {
		expr.Title = collapseSpace(doc.Find("h1").First().Text())
	}

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name := s.AttrOr("name", "")
		if name == "" {
			name = s.AttrOr("property", "") // OpenGraph
		}
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if name == "" || content == "" {
			return
		}
		expr.Meta[strings.ToLower(name)] = content
	})
	expr.MetaDescription = expr.Meta["description"]

	scope := doc.Find("main").First()
	if scope.Length() == 0 {
		scope = doc.Find("body").First()
	}
	if scope.Length() > 0 {
		content := scope.Clone()
		content.Find(boilerplate).Remove()
		if h, err := content.Html(); err == nil {
			expr.MainHTML = strings.TrimSpace(h)
		}
		var b strings.Builder
		for _, n := range content.Nodes {
			collectText(n, &b)
		}
		expr.MainText = collapseSpace(b.String())
	}

	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		ref := resolveReference(base, href)
		if ref == "" || seen[ref] {
			return
		}
		seen[ref] = true
		expr.References = append(expr.References, ref)
	})

	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		expr.AddAlias(resolveReference(base, strings.TrimSpace(href)))
	}
	if og, ok := expr.Meta["og:url"]; ok {
		expr.AddAlias(resolveReference(base, og))
	}

	return expr, nil
}

// collectText appends the text nodes under n, separated by spaces.
func collectText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	case html.CommentNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
