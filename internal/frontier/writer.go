package frontier

import (
	"context"
	"fmt"

	"github.com/nao1215/crawlgraph/internal/model"
)

// ResourceExpressionStore is the part of the store StoreWriter needs.
type ResourceExpressionStore interface {
	CreateExpression(ctx context.Context, expr *model.Expression) (int64, error)
	UpdateExpression(ctx context.Context, expr *model.Expression) error
	FindOrCreateResources(ctx context.Context, urls []string) ([]model.Resource, error)
	AssociateWithExpression(ctx context.Context, resourceID, expressionID int64) error
}

// StoreWriter is an ExpressionWriter that also ties each new expression to
// the resource of its URL, creating the resource when needed.
type StoreWriter struct {
	store ResourceExpressionStore
}

// NewStoreWriter creates a StoreWriter.
func NewStoreWriter(s ResourceExpressionStore) *StoreWriter {
	return &StoreWriter{store: s}
}

// CreateExpression persists expr and associates it with its resource.
func (w *StoreWriter) CreateExpression(ctx context.Context, expr *model.Expression) (int64, error) {
	id, err := w.store.CreateExpression(ctx, expr)
	if err != nil {
		return 0, err
	}
	resources, err := w.store.FindOrCreateResources(ctx, []string{expr.URL})
	if err != nil {
		return id, fmt.Errorf("failed to find resource of %s: %w", expr.URL, err)
	}
	if len(resources) == 0 {
		return id, fmt.Errorf("no resource for %s", expr.URL)
	}
	if err := w.store.AssociateWithExpression(ctx, resources[0].ID, id); err != nil {
		return id, fmt.Errorf("failed to associate expression: %w", err)
	}
	return id, nil
}

// UpdateExpression overwrites a stored expression.
func (w *StoreWriter) UpdateExpression(ctx context.Context, expr *model.Expression) error {
	return w.store.UpdateExpression(ctx, expr)
}
