package frontier

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nao1215/crawlgraph/internal/approve"
	"github.com/nao1215/crawlgraph/internal/model"
	"github.com/nao1215/crawlgraph/internal/store"
)

// ExpressionFetcher returns the expression of a URL, from the store or the
// network.
type ExpressionFetcher interface {
	GetExpression(ctx context.Context, url string) (*model.Expression, error)
}

// ExpressionWriter persists approved expressions.
type ExpressionWriter interface {
	CreateExpression(ctx context.Context, expr *model.Expression) (int64, error)
	UpdateExpression(ctx context.Context, expr *model.Expression) error
}

// Frontier creates crawl sessions sharing the same collaborators.
type Frontier struct {
	fetcher     ExpressionFetcher
	writer      ExpressionWriter
	policy      approve.Policy
	concurrency int
	maxDepth    int
	logger      *slog.Logger
}

// Option configures a Frontier.
type Option func(*Frontier)

// WithConcurrency limits the number of fetches running at once in a layer.
// 0 means no limit.
func WithConcurrency(n int) Option {
	return func(f *Frontier) {
		if n >= 0 {
			f.concurrency = n
		}
	}
}

// WithMaxDepth stops the crawl after layer n, seeds being layer 0, so at
// most n+1 layers are fetched. 0 means no limit.
func WithMaxDepth(n int) Option {
	return func(f *Frontier) {
		if n >= 0 {
			f.maxDepth = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Frontier) {
		f.logger = logger
	}
}

// New creates a Frontier.
func New(fetcher ExpressionFetcher, writer ExpressionWriter, policy approve.Policy, opts ...Option) *Frontier {
	f := &Frontier{
		fetcher: fetcher,
		writer:  writer,
		policy:  policy,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewSession prepares a crawl from seeds looking for words.
// Seeds are stripped of their fragment; duplicates collapse.
func (f *Frontier) NewSession(seeds, words []string) *Session {
	id := uuid.NewString()
	s := &Session{
		frontier: f,
		id:       id,
		words:    append([]string(nil), words...),
		todo:     make(map[string]struct{}),
		doing:    make(map[string]struct{}),
		done:     make(map[string]struct{}),
		logger:   f.logger.With("session", id),
	}
	for _, seed := range seeds {
		u := store.StripFragment(seed)
		if u == "" {
			continue
		}
		s.todo[u] = struct{}{}
	}
	return s
}
