package approve

import (
	"testing"

	"github.com/nao1215/crawlgraph/internal/model"
)

func TestFold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Hello", "hello"},
		{"  Élan Vital ", "elan vital"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := Fold(tt.in); got != tt.want {
				t.Errorf("Fold(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestKeywordPolicy(t *testing.T) {
	t.Parallel()

	page := &model.Expression{
		Title:           "Café culture",
		MetaDescription: "About coffee",
		MainText:        "Espresso and more.",
	}

	tests := []struct {
		name   string
		policy *KeywordPolicy
		in     Input
		want   bool
	}{
		{
			name:   "seed is always approved",
			policy: NewKeywordPolicy(),
			in:     Input{Depth: 0, WordsToMatch: []string{"nothing"}, Expression: page},
			want:   true,
		},
		{
			name:   "word in title ignoring accents",
			policy: NewKeywordPolicy(),
			in:     Input{Depth: 3, WordsToMatch: []string{"CAFE"}, Expression: page},
			want:   true,
		},
		{
			name:   "word in meta description",
			policy: NewKeywordPolicy(),
			in:     Input{Depth: 2, WordsToMatch: []string{"coffee"}, Expression: page},
			want:   true,
		},
		{
			name:   "word in main text",
			policy: NewKeywordPolicy(),
			in:     Input{Depth: 2, WordsToMatch: []string{"tea", "espresso"}, Expression: page},
			want:   true,
		},
		{
			name:   "no word matches",
			policy: NewKeywordPolicy(),
			in:     Input{Depth: 1, WordsToMatch: []string{"tea"}, Expression: page},
			want:   false,
		},
		{
			name:   "no words within unconstrained depth",
			policy: NewKeywordPolicy(),
			in:     Input{Depth: 1, Expression: page},
			want:   true,
		},
		{
			name:   "no words beyond unconstrained depth",
			policy: NewKeywordPolicy(),
			in:     Input{Depth: 2, Expression: page},
			want:   false,
		},
		{
			name:   "blank words count as none",
			policy: NewKeywordPolicy(),
			in:     Input{Depth: 1, WordsToMatch: []string{"  "}, Expression: page},
			want:   true,
		},
		{
			name:   "max depth rejects matching page",
			policy: &KeywordPolicy{MaxDepth: 2, UnconstrainedDepth: 1},
			in:     Input{Depth: 3, WordsToMatch: []string{"cafe"}, Expression: page},
			want:   false,
		},
		{
			name:   "missing expression with words",
			policy: NewKeywordPolicy(),
			in:     Input{Depth: 1, WordsToMatch: []string{"cafe"}},
			want:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.policy.Approve(tt.in); got != tt.want {
				t.Errorf("Approve() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPolicyFunc(t *testing.T) {
	t.Parallel()

	var called bool
	p := PolicyFunc(func(in Input) bool {
		called = true
		return in.Depth < 2
	})
	if !p.Approve(Input{Depth: 1}) || !called {
		t.Error("PolicyFunc did not delegate")
	}
}
