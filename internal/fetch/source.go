package fetch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/crawlgraph/internal/model"
)

// ExpressionFinder looks up stored expressions.
type ExpressionFinder interface {
	FindExpressionByURL(ctx context.Context, url string) (*model.Expression, error)
}

// ExpressionSource returns the expression of a URL, preferring the stored
// one. A stored expression comes back with SkipSave set so that it is not
// written again.
type ExpressionSource struct {
	finder  ExpressionFinder
	fetcher Fetcher
	logger  *slog.Logger
}

// NewExpressionSource creates an ExpressionSource. A nil logger means
// slog.Default().
func NewExpressionSource(finder ExpressionFinder, fetcher Fetcher, logger *slog.Logger) *ExpressionSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpressionSource{finder: finder, fetcher: fetcher, logger: logger}
}

// GetExpression returns the expression of url. Lookup failures fall back
// to the network.
func (s *ExpressionSource) GetExpression(ctx context.Context, url string) (*model.Expression, error) {
	stored, err := s.finder.FindExpressionByURL(ctx, url)
	if err != nil {
		s.logger.Warn("failed to look up stored expression", "url", url, "error", err)
	}
	if err == nil && stored != nil {
		stored.SkipSave = true
		return stored, nil
	}

	result, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if result.Expression == nil {
		return nil, fmt.Errorf("%w: %s (%s, status %d)", ErrNoExpression, url,
			result.Resource.OtherError, result.Resource.HTTPStatus)
	}
	if result.Redirected(url) {
		result.Expression.AddAlias(url)
	}
	return result.Expression, nil
}
