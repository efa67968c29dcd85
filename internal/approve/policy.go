package approve

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/crawlgraph/internal/model"
)

// Input is what a Policy decides on.
type Input struct {
	// Depth is the distance from the crawl's seeds.
	Depth int

	// WordsToMatch are the keywords the crawl is looking for.
	WordsToMatch []string

	// Expression is the fetched page.
	Expression *model.Expression
}

// Policy decides whether a page is relevant. Implementations must be
// deterministic and free of side effects.
type Policy interface {
	Approve(in Input) bool
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(in Input) bool

// Approve implements Policy.
func (f PolicyFunc) Approve(in Input) bool {
	return f(in)
}

// DefaultUnconstrainedDepth is how deep a crawl without keywords goes.
const DefaultUnconstrainedDepth = 1

// KeywordPolicy approves pages that mention one of the words to match.
//
// Seeds (depth 0) are always approved. Without words, pages are approved
// up to UnconstrainedDepth. Matching ignores case and diacritics.
type KeywordPolicy struct {
	// MaxDepth rejects every page deeper than it. 0 means no limit.
	MaxDepth int

	// UnconstrainedDepth bounds crawls that have no words to match.
	UnconstrainedDepth int
}

// NewKeywordPolicy returns a KeywordPolicy with default settings.
func NewKeywordPolicy() *KeywordPolicy {
	return &KeywordPolicy{UnconstrainedDepth: DefaultUnconstrainedDepth}
}

// Approve implements Policy.
func (p *KeywordPolicy) Approve(in Input) bool {
	if in.Depth == 0 {
		return true
	}
	if p.MaxDepth > 0 && in.Depth > p.MaxDepth {
		return false
	}

	words := make([]string, 0, len(in.WordsToMatch))
	for _, w := range in.WordsToMatch {
		if f := Fold(w); f != "" {
			words = append(words, f)
		}
	}
	if len(words) == 0 {
		return in.Depth <= p.UnconstrainedDepth
	}
	if in.Expression == nil {
		return false
	}

	haystacks := []string{
		Fold(in.Expression.Title),
		Fold(in.Expression.MetaDescription),
		Fold(in.Expression.MainText),
	}
	for _, w := range words {
		for _, h := range haystacks {
			if strings.Contains(h, w) {
				return true
			}
		}
	}
	return false
}

// Fold returns s case folded, without diacritics and with surrounding
// spaces trimmed, so that "Élan" and "elan" compare equal.
func Fold(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		cases.Fold(),
		norm.NFC,
	)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return strings.TrimSpace(folded)
}
