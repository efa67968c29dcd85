package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/crawlgraph/internal/approve"
	"github.com/nao1215/crawlgraph/internal/fetch"
	"github.com/nao1215/crawlgraph/internal/model"
)

const (
	// DefaultTaskPickInterval is the time between two claim attempts.
	DefaultTaskPickInterval = 10 * time.Second

	// DefaultMaxConcurrentTasks bounds the tasks in flight.
	DefaultMaxConcurrentTasks = 30

	// DefaultMaxDelay is the deadline of a single task.
	DefaultMaxDelay = 3 * time.Minute

	// staleClaimMargin is added to the longest time a live task can hold
	// its claim.
	staleClaimMargin = time.Minute
)

// MinStaleClaimAge is the shortest stale claim age that never releases the
// claim of a live worker whose tasks run with maxDelay. A task spends at
// most maxDelay fetching, maxDelay writing its results and maxDelay
// deleting itself.
func MinStaleClaimAge(maxDelay time.Duration) time.Duration {
	return 3*maxDelay + staleClaimMargin
}

// TaskStore is the part of the store the pool uses.
type TaskStore interface {
	PickTasks(ctx context.Context, n int) ([]model.Task, error)
	DeleteTask(ctx context.Context, id int64) error
	CreateTasks(ctx context.Context, resourceIDs []int64, territoireID int64, depth int) error
	ReleaseStaleTasks(ctx context.Context, olderThan time.Duration) (int64, error)

	FindValidResourcesByIDs(ctx context.Context, ids []int64) ([]model.Resource, error)
	FindOrCreateResourcesForTerritoire(ctx context.Context, urls []string, territoireID int64) ([]model.Resource, error)
	UpdateResource(ctx context.Context, id int64, update model.ResourceUpdate) error
	AddAlias(ctx context.Context, aliasID int64, canonicalURL string) (int64, error)
	AssociateWithExpression(ctx context.Context, resourceID, expressionID int64) error

	CreateExpression(ctx context.Context, expr *model.Expression) (int64, error)
	CreateLinks(ctx context.Context, links []model.Link) error
	UpdateAnnotation(ctx context.Context, resourceID, territoireID int64, values map[string]string, approved *bool) error
}

// Pool processes get-expression tasks.
type Pool struct {
	store   TaskStore
	fetcher fetch.Fetcher
	policy  approve.Policy

	interval time.Duration
	maxTasks int
	maxDelay time.Duration
	followUp bool
	staleAge time.Duration
	words    map[int64][]string

	id      string
	logger  *slog.Logger
	metrics *Metrics

	// picking guards against two overlapping claims.
	picking atomic.Bool

	mu       sync.Mutex
	inFlight map[int64]struct{}

	wg sync.WaitGroup
}

// Option configures a Pool.
type Option func(*Pool)

// WithInterval sets the time between two claim attempts.
func WithInterval(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMaxConcurrentTasks bounds the tasks in flight.
func WithMaxConcurrentTasks(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.maxTasks = n
		}
	}
}

// WithMaxDelay sets the deadline of a single task.
func WithMaxDelay(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.maxDelay = d
		}
	}
}

// WithFollowUpTasks makes approved pages queue tasks for their references
// one level deeper.
func WithFollowUpTasks(enabled bool) Option {
	return func(p *Pool) {
		p.followUp = enabled
	}
}

// WithStaleClaimAge releases, when Run starts, claims older than d that a
// crashed worker left behind. 0 disables the release. Run raises d to
// MinStaleClaimAge of the pool's max delay, so every worker sharing the
// store must run with the same max delay.
func WithStaleClaimAge(d time.Duration) Option {
	return func(p *Pool) {
		p.staleAge = d
	}
}

// WithTerritoireWords sets the words the approval policy matches, per
// territoire.
func WithTerritoireWords(words map[int64][]string) Option {
	return func(p *Pool) {
		p.words = words
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

// WithMetrics sets the collectors the pool reports to.
func WithMetrics(m *Metrics) Option {
	return func(p *Pool) {
		p.metrics = m
	}
}

// NewPool creates a pool. Nothing runs until Run is called.
func NewPool(store TaskStore, fetcher fetch.Fetcher, policy approve.Policy, opts ...Option) *Pool {
	p := &Pool{
		store:    store,
		fetcher:  fetcher,
		policy:   policy,
		interval: DefaultTaskPickInterval,
		maxTasks: DefaultMaxConcurrentTasks,
		maxDelay: DefaultMaxDelay,
		id:       uuid.NewString(),
		logger:   slog.Default(),
		inFlight: make(map[int64]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = NewMetrics(nil)
	}
	p.logger = p.logger.With("worker", p.id)
	return p
}

// ID returns the pool identifier used in logs.
func (p *Pool) ID() string {
	return p.id
}

// InFlight returns the number of tasks being processed.
func (p *Pool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inFlight)
}

// Run claims and processes tasks until ctx is cancelled, then waits for the
// tasks in flight. Tasks keep running after cancellation until they settle
// or hit their deadline, so that no claim is left half done.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info("worker started",
		"interval", p.interval,
		"max_tasks", p.maxTasks,
		"max_delay", p.maxDelay,
	)

	if p.staleAge > 0 {
		age := p.staleAge
		if floor := MinStaleClaimAge(p.maxDelay); age < floor {
			p.logger.Warn("stale claim age raised to outlive live tasks", "requested", age, "used", floor)
			age = floor
		}
		n, err := p.store.ReleaseStaleTasks(ctx, age)
		if err != nil {
			p.logger.Warn("failed to release stale tasks", "error", err)
		} else if n > 0 {
			p.logger.Info("released stale tasks", "count", n)
		}
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	taskCtx := context.WithoutCancel(ctx)
	p.launchTick(ctx, taskCtx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping", "in_flight", p.InFlight())
			p.wg.Wait()
			p.logger.Info("worker stopped")
			return nil
		case <-ticker.C:
			p.launchTick(ctx, taskCtx)
		}
	}
}

func (p *Pool) launchTick(pickCtx, taskCtx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.tick(pickCtx, taskCtx)
	}()
}

// tick claims as many tasks as there are free slots and starts them.
// It returns immediately when another claim is still running.
func (p *Pool) tick(pickCtx, taskCtx context.Context) {
	if !p.picking.CompareAndSwap(false, true) {
		return
	}
	defer p.picking.Store(false)

	free := p.maxTasks - p.InFlight()
	if free <= 0 {
		return
	}

	tasks, err := p.store.PickTasks(pickCtx, free)
	if err != nil {
		p.metrics.pickErrors.Inc()
		p.logger.Warn("failed to pick tasks", "error", err)
		return
	}
	if len(tasks) == 0 {
		return
	}
	p.logger.Debug("picked tasks", "count", len(tasks))

	for _, task := range tasks {
		p.mu.Lock()
		p.inFlight[task.ID] = struct{}{}
		p.mu.Unlock()
		p.metrics.picked.Inc()
		p.metrics.inFlight.Inc()

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.processTask(taskCtx, task)
		}()
	}
}

// finish removes a settled task from the in-flight set.
func (p *Pool) finish(task model.Task, outcome string, started time.Time) {
	p.mu.Lock()
	delete(p.inFlight, task.ID)
	p.mu.Unlock()

	p.metrics.inFlight.Dec()
	p.metrics.finished.WithLabelValues(outcome).Inc()
	p.metrics.duration.Observe(time.Since(started).Seconds())
}

// wordsFor returns the words to match in a territoire.
func (p *Pool) wordsFor(territoireID int64) []string {
	if p.words == nil {
		return nil
	}
	return p.words[territoireID]
}
