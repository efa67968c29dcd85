// Package storetest provides an in-memory implementation of store.Store
// for tests of the core components.
package storetest

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/nao1215/crawlgraph/internal/model"
	"github.com/nao1215/crawlgraph/internal/store"
)

// Memory is a goroutine-safe in-memory store.
// Methods can be made to fail with FailOn.
type Memory struct {
	mu sync.Mutex

	resources   map[int64]*model.Resource
	byURL       map[string]int64
	expressions map[int64]*model.Expression
	links       []model.Link
	tasks       map[int64]*memTask
	annotations map[annotationKey]*model.Annotation

	failures map[string]error
	calls    map[string]int

	nextID int64
}

type memTask struct {
	task      model.Task
	claimedAt time.Time
}

type annotationKey struct {
	resourceID   int64
	territoireID int64
}

var _ store.Store = (*Memory)(nil)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		resources:   make(map[int64]*model.Resource),
		byURL:       make(map[string]int64),
		expressions: make(map[int64]*model.Expression),
		tasks:       make(map[int64]*memTask),
		annotations: make(map[annotationKey]*model.Annotation),
		failures:    make(map[string]error),
		calls:       make(map[string]int),
	}
}

// FailOn makes every later call of the named method return err.
// A nil err removes the failure.
func (m *Memory) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, method)
		return
	}
	m.failures[method] = err
}

// Calls returns how many times the named method was called.
func (m *Memory) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// enter records a call and returns the injected failure, if any.
// The caller must hold m.mu.
func (m *Memory) enter(method string) error {
	m.calls[method]++
	return m.failures[method]
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

// findOrCreate returns the resource of url, creating it if needed.
// The caller must hold m.mu.
func (m *Memory) findOrCreate(url string) model.Resource {
	if id, ok := m.byURL[url]; ok {
		return *m.resources[id]
	}
	r := &model.Resource{ID: m.id(), URL: url}
	m.resources[r.ID] = r
	m.byURL[url] = r.ID
	return *r
}

// CreateResources implements store.Resources.
func (m *Memory) CreateResources(_ context.Context, urls []string) ([]model.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateResources"); err != nil {
		return nil, err
	}
	out := make([]model.Resource, 0, len(urls))
	for _, u := range urls {
		out = append(out, m.findOrCreate(u))
	}
	return out, nil
}

// FindOrCreateResources implements store.Resources.
func (m *Memory) FindOrCreateResources(_ context.Context, urls []string) ([]model.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindOrCreateResources"); err != nil {
		return nil, err
	}
	out := make([]model.Resource, 0, len(urls))
	for _, u := range urls {
		out = append(out, m.findOrCreate(u))
	}
	return out, nil
}

// FindOrCreateResourcesForTerritoire implements store.Resources.
func (m *Memory) FindOrCreateResourcesForTerritoire(_ context.Context, urls []string, territoireID int64) ([]model.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindOrCreateResourcesForTerritoire"); err != nil {
		return nil, err
	}
	out := make([]model.Resource, 0, len(urls))
	for _, u := range urls {
		r := m.findOrCreate(u)
		key := annotationKey{r.ID, territoireID}
		if _, ok := m.annotations[key]; !ok {
			m.annotations[key] = &model.Annotation{ResourceID: r.ID, TerritoireID: territoireID}
		}
		out = append(out, r)
	}
	return out, nil
}

// UpdateResource implements store.Resources.
func (m *Memory) UpdateResource(_ context.Context, id int64, update model.ResourceUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateResource"); err != nil {
		return err
	}
	r, ok := m.resources[id]
	if !ok {
		return store.ErrResourceNotFound
	}
	if update.OtherError != nil {
		r.OtherError = *update.OtherError
	}
	if update.HTTPStatus != nil {
		r.HTTPStatus = *update.HTTPStatus
	}
	return nil
}

// FindValidResourcesByIDs implements store.Resources.
func (m *Memory) FindValidResourcesByIDs(_ context.Context, ids []int64) ([]model.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindValidResourcesByIDs"); err != nil {
		return nil, err
	}
	out := make([]model.Resource, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		r, ok := m.resources[id]
		if !ok || seen[id] || !store.IsValidURL(r.URL) {
			continue
		}
		seen[id] = true
		out = append(out, *r)
	}
	return out, nil
}

// FindValidResourcesByURLs implements store.Resources.
func (m *Memory) FindValidResourcesByURLs(_ context.Context, urls []string) ([]model.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindValidResourcesByURLs"); err != nil {
		return nil, err
	}
	out := make([]model.Resource, 0, len(urls))
	for _, u := range urls {
		id, ok := m.byURL[u]
		if !ok || !store.IsValidURL(u) {
			continue
		}
		out = append(out, *m.resources[id])
	}
	return out, nil
}

// AddAlias implements store.Resources.
func (m *Memory) AddAlias(_ context.Context, aliasID int64, canonicalURL string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("AddAlias"); err != nil {
		return 0, err
	}
	alias, ok := m.resources[aliasID]
	if !ok {
		return 0, store.ErrResourceNotFound
	}
	canonical := m.findOrCreate(canonicalURL)
	if canonical.ID != aliasID {
		id := canonical.ID
		alias.AliasOf = &id
	}
	return canonical.ID, nil
}

// AssociateWithExpression implements store.Resources.
func (m *Memory) AssociateWithExpression(_ context.Context, resourceID, expressionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("AssociateWithExpression"); err != nil {
		return err
	}
	r, ok := m.resources[resourceID]
	if !ok {
		return store.ErrResourceNotFound
	}
	id := expressionID
	r.ExpressionID = &id
	return nil
}

// CreateExpression implements store.Expressions.
func (m *Memory) CreateExpression(_ context.Context, expr *model.Expression) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateExpression"); err != nil {
		return 0, err
	}
	stored := *expr
	stored.ID = m.id()
	stored.CreatedAt = time.Now()
	stored.SkipSave = false
	m.expressions[stored.ID] = &stored
	expr.ID = stored.ID
	expr.CreatedAt = stored.CreatedAt
	return stored.ID, nil
}

// UpdateExpression implements store.Expressions.
func (m *Memory) UpdateExpression(_ context.Context, expr *model.Expression) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateExpression"); err != nil {
		return err
	}
	old, ok := m.expressions[expr.ID]
	if !ok {
		return store.ErrExpressionNotFound
	}
	stored := *expr
	stored.CreatedAt = old.CreatedAt
	stored.SkipSave = false
	m.expressions[expr.ID] = &stored
	return nil
}

// FindExpressionByURL implements store.Expressions.
func (m *Memory) FindExpressionByURL(_ context.Context, url string) (*model.Expression, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindExpressionByURL"); err != nil {
		return nil, err
	}
	id, ok := m.byURL[url]
	if !ok {
		return nil, nil
	}
	r := m.resources[id]
	if r.AliasOf != nil {
		r = m.resources[*r.AliasOf]
	}
	if r == nil || r.ExpressionID == nil {
		return nil, nil
	}
	expr, ok := m.expressions[*r.ExpressionID]
	if !ok {
		return nil, nil
	}
	clone := *expr
	return &clone, nil
}

// GetExpressionsWithContent implements store.Expressions.
func (m *Memory) GetExpressionsWithContent(_ context.Context, ids []int64) ([]model.Expression, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetExpressionsWithContent"); err != nil {
		return nil, err
	}
	out := make([]model.Expression, 0, len(ids))
	for _, id := range ids {
		if expr, ok := m.expressions[id]; ok {
			out = append(out, *expr)
		}
	}
	return out, nil
}

// CreateLinks implements store.Links.
func (m *Memory) CreateLinks(_ context.Context, links []model.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateLinks"); err != nil {
		return err
	}
	m.links = append(m.links, links...)
	return nil
}

// FindLinksBySources implements store.Links.
func (m *Memory) FindLinksBySources(_ context.Context, ids []int64) ([]model.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindLinksBySources"); err != nil {
		return nil, err
	}
	out := make([]model.Link, 0)
	for _, l := range m.links {
		if slices.Contains(ids, l.Source) {
			out = append(out, l)
		}
	}
	return out, nil
}

// CreateTasks implements store.Tasks.
func (m *Memory) CreateTasks(_ context.Context, resourceIDs []int64, territoireID int64, depth int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateTasks"); err != nil {
		return err
	}
	for _, rid := range resourceIDs {
		t := model.Task{ID: m.id(), ResourceID: rid, TerritoireID: territoireID, Depth: depth}
		m.tasks[t.ID] = &memTask{task: t}
	}
	return nil
}

// PickTasks implements store.Tasks.
func (m *Memory) PickTasks(_ context.Context, n int) ([]model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("PickTasks"); err != nil {
		return nil, err
	}
	ids := slices.Sorted(maps.Keys(m.tasks))
	out := make([]model.Task, 0, n)
	for _, id := range ids {
		if len(out) >= n {
			break
		}
		t := m.tasks[id]
		if !t.claimedAt.IsZero() {
			continue
		}
		t.claimedAt = time.Now()
		out = append(out, t.task)
	}
	return out, nil
}

// DeleteTask implements store.Tasks.
func (m *Memory) DeleteTask(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteTask"); err != nil {
		return err
	}
	delete(m.tasks, id)
	return nil
}

// CountTasksByTerritoire implements store.Tasks.
func (m *Memory) CountTasksByTerritoire(_ context.Context, territoireID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CountTasksByTerritoire"); err != nil {
		return 0, err
	}
	count := 0
	for _, t := range m.tasks {
		if t.task.TerritoireID == territoireID {
			count++
		}
	}
	return count, nil
}

// ReleaseStaleTasks implements store.Tasks.
func (m *Memory) ReleaseStaleTasks(_ context.Context, olderThan time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ReleaseStaleTasks"); err != nil {
		return 0, err
	}
	var released int64
	limit := time.Now().Add(-olderThan)
	for _, t := range m.tasks {
		if !t.claimedAt.IsZero() && t.claimedAt.Before(limit) {
			t.claimedAt = time.Time{}
			released++
		}
	}
	return released, nil
}

// UpdateAnnotation implements store.Annotations.
func (m *Memory) UpdateAnnotation(_ context.Context, resourceID, territoireID int64, values map[string]string, approved *bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateAnnotation"); err != nil {
		return err
	}
	key := annotationKey{resourceID, territoireID}
	a, ok := m.annotations[key]
	if !ok {
		a = &model.Annotation{ResourceID: resourceID, TerritoireID: territoireID}
		m.annotations[key] = a
	}
	if values != nil {
		a.Values = maps.Clone(values)
	}
	if approved != nil {
		v := *approved
		a.Approved = &v
	}
	return nil
}

// FindNotApprovedAnnotations implements store.Annotations.
func (m *Memory) FindNotApprovedAnnotations(_ context.Context, territoireID int64) ([]model.Annotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindNotApprovedAnnotations"); err != nil {
		return nil, err
	}
	out := make([]model.Annotation, 0)
	for key, a := range m.annotations {
		if key.territoireID == territoireID && a.Approved != nil && !*a.Approved {
			out = append(out, *a)
		}
	}
	return out, nil
}

// FindAnnotationsByResourceIDs implements store.Annotations.
func (m *Memory) FindAnnotationsByResourceIDs(_ context.Context, resourceIDs []int64, territoireID int64) ([]model.Annotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindAnnotationsByResourceIDs"); err != nil {
		return nil, err
	}
	out := make([]model.Annotation, 0)
	for _, rid := range resourceIDs {
		if a, ok := m.annotations[annotationKey{rid, territoireID}]; ok {
			out = append(out, *a)
		}
	}
	return out, nil
}

// Close implements store.Store.
func (m *Memory) Close() error {
	return nil
}

// Resource returns a copy of the resource with the given id.
func (m *Memory) Resource(id int64) (model.Resource, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resources[id]
	if !ok {
		return model.Resource{}, false
	}
	return *r, true
}

// ResourceByURL returns a copy of the resource with the given URL.
func (m *Memory) ResourceByURL(url string) (model.Resource, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byURL[url]
	if !ok {
		return model.Resource{}, false
	}
	return *m.resources[id], true
}

// Expressions returns a copy of every stored expression.
func (m *Memory) Expressions() []model.Expression {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Expression, 0, len(m.expressions))
	for _, id := range slices.Sorted(maps.Keys(m.expressions)) {
		out = append(out, *m.expressions[id])
	}
	return out
}

// AllLinks returns a copy of every stored link.
func (m *Memory) AllLinks() []model.Link {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.links)
}

// TaskCount returns the number of tasks still in the queue.
func (m *Memory) TaskCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// AgeClaims moves every current claim d into the past.
func (m *Memory) AgeClaims(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if !t.claimedAt.IsZero() {
			t.claimedAt = t.claimedAt.Add(-d)
		}
	}
}

// Annotation returns a copy of an annotation.
func (m *Memory) Annotation(resourceID, territoireID int64) (model.Annotation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.annotations[annotationKey{resourceID, territoireID}]
	if !ok {
		return model.Annotation{}, false
	}
	return *a, true
}

// SetAlias marks aliasID as an alias of canonicalID without any lookup.
// It is meant for seeding graphs in tests.
func (m *Memory) SetAlias(aliasID, canonicalID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.resources[aliasID]; ok {
		id := canonicalID
		r.AliasOf = &id
	}
}
