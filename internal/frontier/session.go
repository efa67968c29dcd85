package frontier

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/crawlgraph/internal/approve"
	"github.com/nao1215/crawlgraph/internal/model"
	"github.com/nao1215/crawlgraph/internal/store"
)

// Session is one crawl. Its URL sets are private to it.
type Session struct {
	frontier *Frontier
	id       string
	words    []string
	logger   *slog.Logger

	mu    sync.Mutex
	todo  map[string]struct{}
	doing map[string]struct{}
	done  map[string]struct{}
	depth int
}

// State is a copy of a session's URL sets.
type State struct {
	Todo  []string
	Doing []string
	Done  []string

	// Depth is the layer being crawled, or the last one crawled.
	Depth int
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// Snapshot returns the current URL sets, each sorted.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Todo:  sortedKeys(s.todo),
		Doing: sortedKeys(s.doing),
		Done:  sortedKeys(s.done),
		Depth: s.depth,
	}
}

// Crawl runs the session until no layer is left, the maximum depth is
// reached or ctx is cancelled. Per-URL failures are logged and only end
// that URL's branch.
func (s *Session) Crawl(ctx context.Context) {
	for depth := 0; ; depth++ {
		if ctx.Err() != nil {
			s.logger.Info("crawl cancelled", "depth", depth)
			return
		}
		if limit := s.frontier.maxDepth; limit > 0 && depth > limit {
			s.logger.Info("maximum depth reached", "depth", limit)
			return
		}

		layer := s.startLayer(depth)
		if len(layer) == 0 {
			return
		}
		s.logger.Debug("crawling layer", "depth", depth, "urls", len(layer))

		anyApproved := s.crawlLayer(ctx, layer, depth)
		if !anyApproved {
			s.logger.Debug("no page approved, stopping", "depth", depth)
			return
		}
		if s.pending() == 0 {
			return
		}
	}
}

// startLayer moves every URL of todo to doing.
func (s *Session) startLayer(depth int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.depth = depth
	layer := sortedKeys(s.todo)
	for _, u := range layer {
		s.doing[u] = struct{}{}
	}
	clear(s.todo)
	return layer
}

// crawlLayer fetches every URL of the layer and waits for all of them.
// It reports whether at least one page was approved.
func (s *Session) crawlLayer(ctx context.Context, layer []string, depth int) bool {
	var (
		g        errgroup.Group
		approved atomic.Bool
	)
	if n := s.frontier.concurrency; n > 0 {
		g.SetLimit(n)
	}
	for _, u := range layer {
		g.Go(func() error {
			if s.crawlURL(ctx, u, depth) {
				approved.Store(true)
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // branches never return errors
	return approved.Load()
}

// crawlURL handles one URL and reports whether its page was approved.
func (s *Session) crawlURL(ctx context.Context, u string, depth int) bool {
	expr, err := s.frontier.fetcher.GetExpression(ctx, u)
	s.settle(u, expr)
	if err != nil {
		s.logger.Warn("failed to get expression", "url", u, "depth", depth, "error", err)
		return false
	}
	if expr == nil {
		return false
	}

	in := approve.Input{Depth: depth, WordsToMatch: s.words, Expression: expr}
	if !s.frontier.policy.Approve(in) {
		s.logger.Debug("page not approved", "url", u, "depth", depth)
		return false
	}

	if !expr.SkipSave {
		s.save(ctx, expr)
	}

	added := s.expand(expr.References)
	s.logger.Debug("page approved", "url", u, "depth", depth, "new_urls", added)
	return true
}

func (s *Session) save(ctx context.Context, expr *model.Expression) {
	if expr.Persisted() {
		if err := s.frontier.writer.UpdateExpression(ctx, expr); err != nil {
			s.logger.Warn("failed to update expression", "url", expr.URL, "error", err)
		}
		return
	}
	if _, err := s.frontier.writer.CreateExpression(ctx, expr); err != nil {
		s.logger.Warn("failed to create expression", "url", expr.URL, "error", err)
	}
}

// settle moves u from doing to done. The URL the page was actually served
// from is marked done as well, so that a redirect target is not fetched
// again by the same session.
func (s *Session) settle(u string, expr *model.Expression) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.doing, u)
	s.done[u] = struct{}{}
	if expr != nil && expr.URL != "" && expr.URL != u {
		if _, inFlight := s.doing[expr.URL]; !inFlight {
			delete(s.todo, expr.URL)
			s.done[expr.URL] = struct{}{}
		}
	}
}

// expand adds the references that are neither in flight nor done to todo
// and returns how many were new.
func (s *Session) expand(refs []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, ref := range refs {
		u := store.StripFragment(ref)
		if !store.IsValidURL(u) {
			continue
		}
		if _, ok := s.doing[u]; ok {
			continue
		}
		if _, ok := s.done[u]; ok {
			continue
		}
		if _, ok := s.todo[u]; ok {
			continue
		}
		s.todo[u] = struct{}{}
		added++
	}
	return added
}

func (s *Session) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.todo)
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
