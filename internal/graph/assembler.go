package graph

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/crawlgraph/internal/model"
	"github.com/nao1215/crawlgraph/internal/store"
)

// Store is the part of the store the assembler reads.
type Store interface {
	FindValidResourcesByURLs(ctx context.Context, urls []string) ([]model.Resource, error)
	FindValidResourcesByIDs(ctx context.Context, ids []int64) ([]model.Resource, error)
	FindLinksBySources(ctx context.Context, ids []int64) ([]model.Link, error)
	GetExpressionsWithContent(ctx context.Context, ids []int64) ([]model.Expression, error)
	FindNotApprovedAnnotations(ctx context.Context, territoireID int64) ([]model.Annotation, error)
	FindAnnotationsByResourceIDs(ctx context.Context, resourceIDs []int64, territoireID int64) ([]model.Annotation, error)
}

// Assembler builds graphs from a store.
type Assembler struct {
	store  Store
	logger *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		a.logger = logger
	}
}

// NewAssembler creates an assembler reading from s.
func NewAssembler(s Store, opts ...Option) *Assembler {
	a := &Assembler{
		store:  s,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Result is an assembled graph with the aliases met while building it.
type Result struct {
	*model.Graph

	// Aliases maps alias resource ids to the id they point to.
	Aliases map[int64]int64
}

// FromRootURIs builds the graph reachable from rootURIs. Resources in
// blacklist are excluded, and so are edges pointing at them.
//
// Edge targets are mapped through the alias map once: behind a chain of two
// aliases the edge stays on the middle one, which Result.Aliases resolves.
func (a *Assembler) FromRootURIs(ctx context.Context, rootURIs []string, blacklist []int64) (*Result, error) {
	urls := make([]string, 0, len(rootURIs))
	for _, u := range rootURIs {
		urls = append(urls, store.StripFragment(u))
	}
	roots, err := a.store.FindValidResourcesByURLs(ctx, urls)
	if err != nil {
		return nil, fmt.Errorf("failed to find root resources: %w", err)
	}

	t := newTraversal(a.store, blacklist)
	ids := make([]int64, 0, len(roots))
	for _, r := range roots {
		if t.claim(r.ID) {
			ids = append(ids, r.ID)
		}
	}
	if err := t.visit(ctx, ids, 0); err != nil {
		return nil, err
	}

	result := t.result()
	a.logger.Debug("graph assembled",
		"roots", len(rootURIs),
		"nodes", len(result.Nodes),
		"edges", len(result.Edges),
		"aliases", len(result.Aliases),
	)
	return result, nil
}

// TerritoireGraph builds the graph of a territoire, leaving out resources
// that were explicitly not approved in it, plus the exclude ids.
func (a *Assembler) TerritoireGraph(ctx context.Context, territoireID int64, rootURIs []string, exclude ...int64) (*Result, error) {
	rejected, err := a.store.FindNotApprovedAnnotations(ctx, territoireID)
	if err != nil {
		return nil, fmt.Errorf("failed to find rejected resources: %w", err)
	}
	blacklist := make([]int64, 0, len(rejected)+len(exclude))
	blacklist = append(blacklist, exclude...)
	for _, ann := range rejected {
		blacklist = append(blacklist, ann.ResourceID)
	}
	return a.FromRootURIs(ctx, rootURIs, blacklist)
}

// Expressions returns the content of every node that has an expression,
// keyed by expression id. The URL is the one of the node.
func (a *Assembler) Expressions(ctx context.Context, g *model.Graph) (map[int64]model.Expression, error) {
	urls := make(map[int64]string)
	ids := make([]int64, 0, len(g.Nodes))
	for _, n := range g.SortedNodes() {
		if n.ExpressionID == nil {
			continue
		}
		ids = append(ids, *n.ExpressionID)
		urls[*n.ExpressionID] = n.URL
	}
	if len(ids) == 0 {
		return map[int64]model.Expression{}, nil
	}

	exprs, err := a.store.GetExpressionsWithContent(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get expressions: %w", err)
	}
	out := make(map[int64]model.Expression, len(exprs))
	for _, e := range exprs {
		if u, ok := urls[e.ID]; ok {
			e.URL = u
		}
		out[e.ID] = e
	}
	return out, nil
}

// Annotations returns the annotation values of the graph's nodes in a
// territoire, keyed by resource id. Nodes without values are left out.
func (a *Assembler) Annotations(ctx context.Context, g *model.Graph, territoireID int64) (map[int64]map[string]string, error) {
	ids := make([]int64, 0, len(g.Nodes))
	for _, n := range g.SortedNodes() {
		ids = append(ids, n.ID)
	}
	if len(ids) == 0 {
		return map[int64]map[string]string{}, nil
	}

	annotations, err := a.store.FindAnnotationsByResourceIDs(ctx, ids, territoireID)
	if err != nil {
		return nil, fmt.Errorf("failed to get annotations: %w", err)
	}
	out := make(map[int64]map[string]string, len(annotations))
	for _, ann := range annotations {
		if len(ann.Values) == 0 {
			continue
		}
		out[ann.ResourceID] = ann.Values
	}
	return out, nil
}

// traversal is the shared state of one walk.
type traversal struct {
	store     Store
	blacklist map[int64]bool

	mu      sync.Mutex
	nodes   map[int64]model.Node
	aliases map[int64]int64
	queued  map[int64]bool
	edges   []model.Edge
}

func newTraversal(s Store, blacklist []int64) *traversal {
	t := &traversal{
		store:     s,
		blacklist: make(map[int64]bool, len(blacklist)),
		nodes:     make(map[int64]model.Node),
		aliases:   make(map[int64]int64),
		queued:    make(map[int64]bool),
	}
	for _, id := range blacklist {
		t.blacklist[id] = true
	}
	return t
}

// claim reports whether id may be visited, and marks it queued.
// The caller must not hold t.mu.
func (t *traversal) claim(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.claimLocked(id)
}

func (t *traversal) claimLocked(id int64) bool {
	if t.blacklist[id] || t.queued[id] {
		return false
	}
	if _, ok := t.nodes[id]; ok {
		return false
	}
	if _, ok := t.aliases[id]; ok {
		return false
	}
	t.queued[id] = true
	return true
}

// visit resolves ids at depth, then walks the canonical resources of the
// aliases at the same depth and the link targets one level deeper.
func (t *traversal) visit(ctx context.Context, ids []int64, depth int) error {
	if len(ids) == 0 {
		return nil
	}
	resources, err := t.store.FindValidResourcesByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to find resources at depth %d: %w", depth, err)
	}

	var canonicals, sources []int64
	t.mu.Lock()
	for _, r := range resources {
		if t.blacklist[r.ID] {
			continue
		}
		if r.IsAlias() {
			t.aliases[r.ID] = *r.AliasOf
			if t.claimLocked(*r.AliasOf) {
				canonicals = append(canonicals, *r.AliasOf)
			}
			continue
		}
		if _, ok := t.nodes[r.ID]; !ok {
			t.nodes[r.ID] = model.Node{Resource: r, Depth: depth}
		}
		if r.ExpressionID != nil {
			sources = append(sources, r.ID)
		}
	}
	t.mu.Unlock()

	var neighbours []int64
	if len(sources) > 0 {
		links, err := t.store.FindLinksBySources(ctx, sources)
		if err != nil {
			return fmt.Errorf("failed to find links at depth %d: %w", depth, err)
		}
		t.mu.Lock()
		for _, l := range links {
			t.edges = append(t.edges, model.Edge{Source: l.Source, Target: l.Target})
			if t.claimLocked(l.Target) {
				neighbours = append(neighbours, l.Target)
			}
		}
		t.mu.Unlock()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return t.visit(ctx, canonicals, depth)
	})
	g.Go(func() error {
		return t.visit(ctx, neighbours, depth+1)
	})
	return g.Wait()
}

// result finalizes the edges: targets go through the alias map once,
// duplicates are merged and edges to blacklisted or unknown resources are
// dropped.
func (t *traversal) result() *Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	g := model.NewGraph()
	for id, n := range t.nodes {
		g.Nodes[id] = n
	}

	seen := make(map[model.Edge]bool, len(t.edges))
	for _, e := range t.edges {
		if canonical, ok := t.aliases[e.Target]; ok {
			e.Target = canonical
		}
		if t.blacklist[e.Target] || seen[e] {
			continue
		}
		_, isNode := t.nodes[e.Target]
		_, isAlias := t.aliases[e.Target]
		if !isNode && !isAlias {
			continue
		}
		seen[e] = true
		g.Edges = append(g.Edges, e)
	}
	slices.SortFunc(g.Edges, func(a, b model.Edge) int {
		if c := cmp.Compare(a.Source, b.Source); c != 0 {
			return c
		}
		return cmp.Compare(a.Target, b.Target)
	})

	aliases := make(map[int64]int64, len(t.aliases))
	for k, v := range t.aliases {
		aliases[k] = v
	}
	return &Result{Graph: g, Aliases: aliases}
}
