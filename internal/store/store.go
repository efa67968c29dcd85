package store

import (
	"context"
	"time"

	"github.com/nao1215/crawlgraph/internal/model"
)

// Resources manages URL-identified resources.
type Resources interface {
	// CreateResources inserts one resource per URL. Existing URLs are
	// returned unchanged.
	CreateResources(ctx context.Context, urls []string) ([]model.Resource, error)

	// FindOrCreateResources returns the resources of the given URLs,
	// creating the missing ones.
	FindOrCreateResources(ctx context.Context, urls []string) ([]model.Resource, error)

	// FindOrCreateResourcesForTerritoire behaves like FindOrCreateResources
	// and also makes sure each resource has an (undecided) annotation in
	// the territoire.
	FindOrCreateResourcesForTerritoire(ctx context.Context, urls []string, territoireID int64) ([]model.Resource, error)

	// UpdateResource applies a partial update.
	UpdateResource(ctx context.Context, id int64, update model.ResourceUpdate) error

	// FindValidResourcesByIDs returns the valid resources among ids.
	// A resource is valid when its URL is an absolute http(s) URL.
	FindValidResourcesByIDs(ctx context.Context, ids []int64) ([]model.Resource, error)

	// FindValidResourcesByURLs returns the valid resources among urls.
	FindValidResourcesByURLs(ctx context.Context, urls []string) ([]model.Resource, error)

	// AddAlias marks aliasID as an alias of the resource at canonicalURL,
	// creating that resource if needed, and returns the canonical id.
	AddAlias(ctx context.Context, aliasID int64, canonicalURL string) (int64, error)

	// AssociateWithExpression attaches an expression to a resource.
	AssociateWithExpression(ctx context.Context, resourceID, expressionID int64) error
}

// Expressions manages extracted page content.
type Expressions interface {
	// CreateExpression persists a new expression and returns its id.
	// On success expr.ID and expr.CreatedAt are filled.
	CreateExpression(ctx context.Context, expr *model.Expression) (int64, error)

	// UpdateExpression overwrites a previously created expression.
	UpdateExpression(ctx context.Context, expr *model.Expression) error

	// FindExpressionByURL returns the expression attached to the canonical
	// resource of url, following one alias hop. It returns nil, nil when
	// there is none.
	FindExpressionByURL(ctx context.Context, url string) (*model.Expression, error)

	// GetExpressionsWithContent returns the full expressions for ids.
	GetExpressionsWithContent(ctx context.Context, ids []int64) ([]model.Expression, error)
}

// Links manages edges between resources.
type Links interface {
	// CreateLinks inserts edges. Duplicates are accepted.
	CreateLinks(ctx context.Context, links []model.Link) error

	// FindLinksBySources returns every edge whose source is in ids.
	FindLinksBySources(ctx context.Context, ids []int64) ([]model.Link, error)
}

// Tasks manages the durable fetch queue.
type Tasks interface {
	// CreateTasks queues one task per resource.
	CreateTasks(ctx context.Context, resourceIDs []int64, territoireID int64, depth int) error

	// PickTasks claims up to n unclaimed tasks. Two concurrent callers,
	// in this process or another, never receive the same task.
	PickTasks(ctx context.Context, n int) ([]model.Task, error)

	// DeleteTask removes a task. Deleting a missing task is not an error.
	DeleteTask(ctx context.Context, id int64) error

	// CountTasksByTerritoire returns the number of pending tasks.
	CountTasksByTerritoire(ctx context.Context, territoireID int64) (int, error)

	// ReleaseStaleTasks makes tasks claimed more than olderThan ago
	// available again and returns how many were released.
	ReleaseStaleTasks(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Annotations manages territoire-scoped judgments.
type Annotations interface {
	// UpdateAnnotation upserts the annotation of a resource in a territoire.
	// Nil values or approved leave the stored field untouched.
	UpdateAnnotation(ctx context.Context, resourceID, territoireID int64, values map[string]string, approved *bool) error

	// FindNotApprovedAnnotations returns annotations explicitly not approved.
	FindNotApprovedAnnotations(ctx context.Context, territoireID int64) ([]model.Annotation, error)

	// FindAnnotationsByResourceIDs returns the annotations of resources in
	// a territoire.
	FindAnnotationsByResourceIDs(ctx context.Context, resourceIDs []int64, territoireID int64) ([]model.Annotation, error)
}

// Store is the complete contract.
type Store interface {
	Resources
	Expressions
	Links
	Tasks
	Annotations

	// Close releases the underlying connections.
	Close() error
}
