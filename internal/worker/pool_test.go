package worker

import (
	"cmp"
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nao1215/crawlgraph/internal/approve"
	"github.com/nao1215/crawlgraph/internal/fetch"
	"github.com/nao1215/crawlgraph/internal/model"
	"github.com/nao1215/crawlgraph/internal/store/storetest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fetcherFunc adapts a function to fetch.Fetcher.
type fetcherFunc func(ctx context.Context, u string) (*fetch.Result, error)

func (f fetcherFunc) Fetch(ctx context.Context, u string) (*fetch.Result, error) {
	return f(ctx, u)
}

// page returns a successful fetch of u linking to refs.
func page(u string, refs ...string) *fetch.Result {
	return &fetch.Result{
		Resource:   model.Resource{URL: u, HTTPStatus: 200},
		Expression: &model.Expression{URL: u, Title: "page " + u, References: refs},
		Links:      refs,
	}
}

func approveAll() approve.Policy {
	return approve.PolicyFunc(func(approve.Input) bool { return true })
}

// claim creates a resource and a task for it, then claims the task.
func claim(t *testing.T, m *storetest.Memory, u string, territoireID int64, depth int) model.Task {
	t.Helper()
	ctx := context.Background()
	resources, err := m.FindOrCreateResourcesForTerritoire(ctx, []string{u}, territoireID)
	if err != nil {
		t.Fatalf("FindOrCreateResourcesForTerritoire() error = %v", err)
	}
	if err := m.CreateTasks(ctx, []int64{resources[0].ID}, territoireID, depth); err != nil {
		t.Fatalf("CreateTasks() error = %v", err)
	}
	tasks, err := m.PickTasks(ctx, 1)
	if err != nil || len(tasks) != 1 {
		t.Fatalf("PickTasks() = %v, %v", tasks, err)
	}
	return tasks[0]
}

func newTestPool(m *storetest.Memory, f fetch.Fetcher, policy approve.Policy, opts ...Option) (*Pool, *Metrics) {
	metrics := NewMetrics(prometheus.NewRegistry())
	opts = append([]Option{WithLogger(quietLogger()), WithMetrics(metrics)}, opts...)
	return NewPool(m, f, policy, opts...), metrics
}

func TestNewPoolDefaults(t *testing.T) {
	t.Parallel()

	p := NewPool(storetest.NewMemory(), fetcherFunc(nil), approveAll(), WithInterval(0), WithMaxConcurrentTasks(-1))
	if p.interval != DefaultTaskPickInterval {
		t.Errorf("interval = %v, want %v", p.interval, DefaultTaskPickInterval)
	}
	if p.maxTasks != DefaultMaxConcurrentTasks {
		t.Errorf("maxTasks = %d, want %d", p.maxTasks, DefaultMaxConcurrentTasks)
	}
	if p.maxDelay != DefaultMaxDelay {
		t.Errorf("maxDelay = %v, want %v", p.maxDelay, DefaultMaxDelay)
	}
	if p.followUp {
		t.Error("follow-up tasks should be disabled by default")
	}
	if p.ID() == "" {
		t.Error("ID() should not be empty")
	}
}

func TestProcessTaskStoresPage(t *testing.T) {
	t.Parallel()

	m := storetest.NewMemory()
	task := claim(t, m, "https://example.com/", 7, 0)
	f := fetcherFunc(func(_ context.Context, u string) (*fetch.Result, error) {
		return page(u, "https://example.com/a", "https://example.com/b"), nil
	})
	p, metrics := newTestPool(m, f, approveAll())
	p.inFlight[task.ID] = struct{}{}
	p.metrics.inFlight.Inc()

	p.processTask(context.Background(), task)

	r, _ := m.Resource(task.ResourceID)
	if r.ExpressionID == nil {
		t.Fatal("resource should be associated with an expression")
	}
	if r.HTTPStatus != 200 {
		t.Errorf("HTTPStatus = %d, want 200", r.HTTPStatus)
	}
	if got := len(m.AllLinks()); got != 2 {
		t.Errorf("links = %d, want 2", got)
	}
	a, ok := m.Annotation(task.ResourceID, 7)
	if !ok || a.Approved == nil || !*a.Approved {
		t.Errorf("annotation = %+v, want approved", a)
	}
	for _, u := range []string{"https://example.com/a", "https://example.com/b"} {
		target, ok := m.ResourceByURL(u)
		if !ok {
			t.Fatalf("link target %s was not created", u)
		}
		if _, ok := m.Annotation(target.ID, 7); !ok {
			t.Errorf("link target %s has no annotation in the territoire", u)
		}
	}
	if m.TaskCount() != 0 {
		t.Errorf("TaskCount() = %d, want 0", m.TaskCount())
	}
	if got := m.Calls("DeleteTask"); got != 1 {
		t.Errorf("DeleteTask calls = %d, want 1", got)
	}
	if p.InFlight() != 0 {
		t.Errorf("InFlight() = %d, want 0", p.InFlight())
	}
	if got := testutil.ToFloat64(metrics.finished.WithLabelValues(OutcomeDone)); got != 1 {
		t.Errorf("done outcome = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.inFlight); got != 0 {
		t.Errorf("in flight gauge = %v, want 0", got)
	}
}

func TestProcessTaskNotApproved(t *testing.T) {
	t.Parallel()

	m := storetest.NewMemory()
	task := claim(t, m, "https://example.com/", 1, 3)
	f := fetcherFunc(func(_ context.Context, u string) (*fetch.Result, error) {
		return page(u), nil
	})
	var depth atomic.Int64
	depth.Store(-1)
	policy := approve.PolicyFunc(func(in approve.Input) bool {
		depth.Store(int64(in.Depth))
		return false
	})
	p, _ := newTestPool(m, f, policy)

	p.processTask(context.Background(), task)

	if got := depth.Load(); got != 3 {
		t.Errorf("policy depth = %d, want 3", got)
	}
	a, _ := m.Annotation(task.ResourceID, 1)
	if a.Approved != nil {
		t.Errorf("Approved = %v, want undecided", *a.Approved)
	}
	if len(m.Expressions()) != 1 {
		t.Errorf("expressions = %d, want 1", len(m.Expressions()))
	}
}

func TestProcessTaskPassesTerritoireWords(t *testing.T) {
	t.Parallel()

	m := storetest.NewMemory()
	task := claim(t, m, "https://example.com/", 4, 1)
	f := fetcherFunc(func(_ context.Context, u string) (*fetch.Result, error) {
		return page(u), nil
	})
	words := make(chan []string, 1)
	policy := approve.PolicyFunc(func(in approve.Input) bool {
		words <- in.WordsToMatch
		return false
	})
	p, _ := newTestPool(m, f, policy, WithTerritoireWords(map[int64][]string{4: {"river"}}))

	p.processTask(context.Background(), task)

	got := <-words
	if len(got) != 1 || got[0] != "river" {
		t.Errorf("WordsToMatch = %v, want [river]", got)
	}
}

func TestProcessTaskTimeout(t *testing.T) {
	t.Parallel()

	m := storetest.NewMemory()
	task := claim(t, m, "https://slow.example.com/", 1, 0)

	release := make(chan struct{})
	returned := make(chan struct{})
	f := fetcherFunc(func(_ context.Context, u string) (*fetch.Result, error) {
		defer close(returned)
		<-release
		return page(u, "https://slow.example.com/late"), nil
	})
	p, metrics := newTestPool(m, f, approveAll(), WithMaxDelay(20*time.Millisecond))

	p.processTask(context.Background(), task)

	r, _ := m.Resource(task.ResourceID)
	if r.OtherError != model.OtherErrorTimeout {
		t.Errorf("OtherError = %q, want %q", r.OtherError, model.OtherErrorTimeout)
	}
	if m.TaskCount() != 0 {
		t.Errorf("TaskCount() = %d, want 0", m.TaskCount())
	}

	close(release)
	<-returned
	time.Sleep(20 * time.Millisecond)

	if len(m.Expressions()) != 0 {
		t.Errorf("late result was written: %d expressions", len(m.Expressions()))
	}
	if len(m.AllLinks()) != 0 {
		t.Errorf("late result was written: %d links", len(m.AllLinks()))
	}
	if got := m.Calls("DeleteTask"); got != 1 {
		t.Errorf("DeleteTask calls = %d, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.finished.WithLabelValues(OutcomeTimeout)); got != 1 {
		t.Errorf("timeout outcome = %v, want 1", got)
	}
}

func TestProcessTaskTimeoutCancelsFetch(t *testing.T) {
	t.Parallel()

	m := storetest.NewMemory()
	task := claim(t, m, "https://slow.example.com/", 1, 0)
	cancelled := make(chan struct{})
	f := fetcherFunc(func(ctx context.Context, _ string) (*fetch.Result, error) {
		<-ctx.Done()
		close(cancelled)
		return nil, ctx.Err()
	})
	p, _ := newTestPool(m, f, approveAll(), WithMaxDelay(10*time.Millisecond))

	p.processTask(context.Background(), task)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("fetch context was not cancelled on timeout")
	}
}

func TestProcessTaskSkips(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(t *testing.T, m *storetest.Memory) model.Task
	}{
		{
			name: "resource already has an error",
			setup: func(t *testing.T, m *storetest.Memory) model.Task {
				task := claim(t, m, "https://example.com/", 1, 0)
				if err := m.UpdateResource(context.Background(), task.ResourceID, model.WithError(model.OtherErrorNotHTML)); err != nil {
					t.Fatal(err)
				}
				return task
			},
		},
		{
			name: "resource is not http",
			setup: func(t *testing.T, m *storetest.Memory) model.Task {
				return claim(t, m, "mailto:someone@example.com", 1, 0)
			},
		},
		{
			name: "resource does not exist",
			setup: func(_ *testing.T, _ *storetest.Memory) model.Task {
				return model.Task{ID: 999, ResourceID: 998, TerritoireID: 1}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := storetest.NewMemory()
			task := tt.setup(t, m)
			var calls atomic.Int32
			f := fetcherFunc(func(_ context.Context, u string) (*fetch.Result, error) {
				calls.Add(1)
				return page(u), nil
			})
			p, metrics := newTestPool(m, f, approveAll())

			p.processTask(context.Background(), task)

			if calls.Load() != 0 {
				t.Errorf("fetch calls = %d, want 0", calls.Load())
			}
			if got := m.Calls("DeleteTask"); got != 1 {
				t.Errorf("DeleteTask calls = %d, want 1", got)
			}
			if got := testutil.ToFloat64(metrics.finished.WithLabelValues(OutcomeSkipped)); got != 1 {
				t.Errorf("skipped outcome = %v, want 1", got)
			}
		})
	}
}

func TestProcessTaskFetchError(t *testing.T) {
	t.Parallel()

	m := storetest.NewMemory()
	task := claim(t, m, "https://example.com/", 1, 0)
	f := fetcherFunc(func(context.Context, string) (*fetch.Result, error) {
		return nil, errors.New("connection refused")
	})
	p, metrics := newTestPool(m, f, approveAll())

	p.processTask(context.Background(), task)

	r, _ := m.Resource(task.ResourceID)
	if r.IsTerminal() {
		t.Errorf("resource should stay fetchable, got %+v", r)
	}
	if m.TaskCount() != 0 {
		t.Errorf("TaskCount() = %d, want 0", m.TaskCount())
	}
	if got := testutil.ToFloat64(metrics.finished.WithLabelValues(OutcomeFetchError)); got != 1 {
		t.Errorf("fetch_error outcome = %v, want 1", got)
	}
}

func TestProcessTaskNilResult(t *testing.T) {
	t.Parallel()

	m := storetest.NewMemory()
	task := claim(t, m, "https://example.com/", 1, 0)
	f := fetcherFunc(func(context.Context, string) (*fetch.Result, error) {
		return nil, nil
	})
	p, metrics := newTestPool(m, f, approveAll())

	p.processTask(context.Background(), task)

	if m.TaskCount() != 0 {
		t.Errorf("TaskCount() = %d, want 0", m.TaskCount())
	}
	if len(m.Expressions()) != 0 {
		t.Errorf("expressions = %d, want 0", len(m.Expressions()))
	}
	if got := testutil.ToFloat64(metrics.finished.WithLabelValues(OutcomeFetchError)); got != 1 {
		t.Errorf("fetch_error outcome = %v, want 1", got)
	}
}

func TestProcessTaskSelfLink(t *testing.T) {
	t.Parallel()

	m := storetest.NewMemory()
	task := claim(t, m, "https://example.com/", 1, 0)
	f := fetcherFunc(func(_ context.Context, u string) (*fetch.Result, error) {
		return page(u, u, "https://example.com/a"), nil
	})
	p, _ := newTestPool(m, f, approveAll(), WithFollowUpTasks(true))

	p.processTask(context.Background(), task)

	a, _ := m.ResourceByURL("https://example.com/a")
	want := []model.Link{
		{Source: task.ResourceID, Target: task.ResourceID},
		{Source: task.ResourceID, Target: a.ID},
	}
	got := m.AllLinks()
	slices.SortFunc(got, func(x, y model.Link) int { return cmp.Compare(x.Target, y.Target) })
	if !slices.Equal(got, want) {
		t.Errorf("links = %v, want %v", got, want)
	}
	tasks, err := m.PickTasks(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].ResourceID != a.ID {
		t.Errorf("follow-up tasks = %+v, want one for %d", tasks, a.ID)
	}
}

func TestProcessTaskHTTPStatus(t *testing.T) {
	t.Parallel()

	m := storetest.NewMemory()
	task := claim(t, m, "https://example.com/missing", 1, 0)
	f := fetcherFunc(func(_ context.Context, u string) (*fetch.Result, error) {
		return &fetch.Result{Resource: model.Resource{
			URL:        u,
			OtherError: model.OtherErrorHTTPStatus,
			HTTPStatus: 404,
		}}, nil
	})
	p, _ := newTestPool(m, f, approveAll())

	p.processTask(context.Background(), task)

	r, _ := m.Resource(task.ResourceID)
	if r.OtherError != model.OtherErrorHTTPStatus || r.HTTPStatus != 404 {
		t.Errorf("resource = %+v, want http_status 404", r)
	}
	if len(m.Expressions()) != 0 {
		t.Errorf("expressions = %d, want 0", len(m.Expressions()))
	}
	if _, ok := m.Annotation(task.ResourceID, 1); !ok {
		t.Fatal("annotation should exist")
	}
}

func TestProcessTaskRedirect(t *testing.T) {
	t.Parallel()

	m := storetest.NewMemory()
	task := claim(t, m, "https://example.com/old", 1, 0)
	f := fetcherFunc(func(context.Context, string) (*fetch.Result, error) {
		return page("https://example.com/new"), nil
	})
	p, _ := newTestPool(m, f, approveAll())

	p.processTask(context.Background(), task)

	canonical, ok := m.ResourceByURL("https://example.com/new")
	if !ok {
		t.Fatal("canonical resource was not created")
	}
	old, _ := m.Resource(task.ResourceID)
	if old.AliasOf == nil || *old.AliasOf != canonical.ID {
		t.Errorf("AliasOf = %v, want %d", old.AliasOf, canonical.ID)
	}
	if canonical.ExpressionID == nil {
		t.Error("expression should be associated with the canonical resource")
	}
	if old.ExpressionID != nil {
		t.Error("alias should not carry the expression")
	}
	if a, ok := m.Annotation(canonical.ID, 1); !ok || a.Approved == nil || !*a.Approved {
		t.Errorf("canonical annotation = %+v, want approved", a)
	}
}

func TestProcessTaskAliasFailureKeepsResource(t *testing.T) {
	t.Parallel()

	m := storetest.NewMemory()
	task := claim(t, m, "https://example.com/old", 1, 0)
	m.FailOn("AddAlias", errors.New("boom"))
	f := fetcherFunc(func(context.Context, string) (*fetch.Result, error) {
		return page("https://example.com/new"), nil
	})
	p, _ := newTestPool(m, f, approveAll())

	p.processTask(context.Background(), task)

	old, _ := m.Resource(task.ResourceID)
	if old.ExpressionID == nil {
		t.Error("expression should be associated with the task resource")
	}
}

func TestProcessTaskStepFailuresAreIndependent(t *testing.T) {
	t.Parallel()

	m := storetest.NewMemory()
	task := claim(t, m, "https://example.com/", 1, 0)
	m.FailOn("CreateExpression", errors.New("disk full"))
	m.FailOn("CreateLinks", errors.New("disk full"))
	f := fetcherFunc(func(_ context.Context, u string) (*fetch.Result, error) {
		return page(u, "https://example.com/a"), nil
	})
	p, metrics := newTestPool(m, f, approveAll())

	p.processTask(context.Background(), task)

	if got := m.Calls("AssociateWithExpression"); got != 0 {
		t.Errorf("AssociateWithExpression calls = %d, want 0", got)
	}
	if a, _ := m.Annotation(task.ResourceID, 1); a.Approved == nil || !*a.Approved {
		t.Error("annotation should be approved despite earlier failures")
	}
	if m.TaskCount() != 0 {
		t.Errorf("TaskCount() = %d, want 0", m.TaskCount())
	}
	if got := testutil.ToFloat64(metrics.finished.WithLabelValues(OutcomeDone)); got != 1 {
		t.Errorf("done outcome = %v, want 1", got)
	}
}

func TestProcessTaskFollowUp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		followUp bool
		approved bool
		want     int
	}{
		{name: "disabled", followUp: false, approved: true, want: 0},
		{name: "enabled", followUp: true, approved: true, want: 2},
		{name: "enabled but not approved", followUp: true, approved: false, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := storetest.NewMemory()
			task := claim(t, m, "https://example.com/", 1, 2)
			f := fetcherFunc(func(_ context.Context, u string) (*fetch.Result, error) {
				return page(u, "https://example.com/a", "https://example.com/b"), nil
			})
			policy := approve.PolicyFunc(func(approve.Input) bool { return tt.approved })
			p, _ := newTestPool(m, f, policy, WithFollowUpTasks(tt.followUp))

			p.processTask(context.Background(), task)

			if got := m.TaskCount(); got != tt.want {
				t.Fatalf("TaskCount() = %d, want %d", got, tt.want)
			}
			if tt.want == 0 {
				return
			}
			tasks, err := m.PickTasks(context.Background(), 10)
			if err != nil {
				t.Fatal(err)
			}
			for _, next := range tasks {
				if next.Depth != 3 {
					t.Errorf("follow-up depth = %d, want 3", next.Depth)
				}
				if next.TerritoireID != 1 {
					t.Errorf("follow-up territoire = %d, want 1", next.TerritoireID)
				}
			}
		})
	}
}

// blockingPicks holds PickTasks until release is closed.
type blockingPicks struct {
	*storetest.Memory
	entered chan struct{}
	release chan struct{}
}

func (b *blockingPicks) PickTasks(ctx context.Context, n int) ([]model.Task, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.Memory.PickTasks(ctx, n)
}

func TestTickSkipsWhilePicking(t *testing.T) {
	t.Parallel()

	m := storetest.NewMemory()
	b := &blockingPicks{Memory: m, entered: make(chan struct{}, 1), release: make(chan struct{})}
	f := fetcherFunc(func(_ context.Context, u string) (*fetch.Result, error) {
		return page(u), nil
	})
	metrics := NewMetrics(prometheus.NewRegistry())
	p := NewPool(b, f, approveAll(), WithLogger(quietLogger()), WithMetrics(metrics))
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.tick(ctx, ctx)
	}()
	<-b.entered

	// A second tick while the first claim is pending returns at once.
	p.tick(ctx, ctx)

	close(b.release)
	<-done
	if got := m.Calls("PickTasks"); got != 1 {
		t.Errorf("PickTasks calls = %d, want 1", got)
	}
}

func TestTickRespectsFreeSlots(t *testing.T) {
	t.Parallel()

	m := storetest.NewMemory()
	for i := range 5 {
		rs, err := m.CreateResources(context.Background(), []string{"https://example.com/" + string(rune('a'+i))})
		if err != nil {
			t.Fatal(err)
		}
		if err := m.CreateTasks(context.Background(), []int64{rs[0].ID}, 1, 0); err != nil {
			t.Fatal(err)
		}
	}

	release := make(chan struct{})
	f := fetcherFunc(func(_ context.Context, u string) (*fetch.Result, error) {
		<-release
		return page(u), nil
	})
	p, metrics := newTestPool(m, f, approveAll(), WithMaxConcurrentTasks(3))
	ctx := context.Background()

	p.tick(ctx, ctx)
	if got := p.InFlight(); got != 3 {
		t.Fatalf("InFlight() = %d, want 3", got)
	}

	// No free slot: nothing is claimed.
	p.tick(ctx, ctx)
	if got := testutil.ToFloat64(metrics.picked); got != 3 {
		t.Errorf("picked = %v, want 3", got)
	}

	close(release)
	p.wg.Wait()
	if got := p.InFlight(); got != 0 {
		t.Errorf("InFlight() = %d, want 0", got)
	}
	if got := m.TaskCount(); got != 2 {
		t.Errorf("TaskCount() = %d, want 2", got)
	}
}

func TestTickPickError(t *testing.T) {
	t.Parallel()

	m := storetest.NewMemory()
	m.FailOn("PickTasks", errors.New("database is locked"))
	p, metrics := newTestPool(m, fetcherFunc(nil), approveAll())
	ctx := context.Background()

	p.tick(ctx, ctx)

	if got := testutil.ToFloat64(metrics.pickErrors); got != 1 {
		t.Errorf("pick errors = %v, want 1", got)
	}
	if p.picking.Load() {
		t.Error("pick guard should be released after an error")
	}
}

func TestRunDrainsQueue(t *testing.T) {
	t.Parallel()

	m := storetest.NewMemory()
	urls := []string{
		"https://example.com/1", "https://example.com/2", "https://example.com/3",
		"https://example.com/4", "https://example.com/5", "https://example.com/6",
	}
	rs, err := m.CreateResources(context.Background(), urls)
	if err != nil {
		t.Fatal(err)
	}
	ids := make([]int64, 0, len(rs))
	for _, r := range rs {
		ids = append(ids, r.ID)
	}
	if err := m.CreateTasks(context.Background(), ids, 1, 0); err != nil {
		t.Fatal(err)
	}

	var (
		mu      sync.Mutex
		running int
		peak    int
	)
	f := fetcherFunc(func(_ context.Context, u string) (*fetch.Result, error) {
		mu.Lock()
		running++
		peak = max(peak, running)
		mu.Unlock()
		time.Sleep(15 * time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
		return page(u), nil
	})
	p, metrics := newTestPool(m, f, approveAll(),
		WithInterval(5*time.Millisecond),
		WithMaxConcurrentTasks(2),
	)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for m.TaskCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := m.TaskCount(); got != 0 {
		t.Fatalf("TaskCount() = %d, want 0", got)
	}
	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
	if got := testutil.ToFloat64(metrics.finished.WithLabelValues(OutcomeDone)); got != 6 {
		t.Errorf("done outcome = %v, want 6", got)
	}
	if got := len(m.Expressions()); got != 6 {
		t.Errorf("expressions = %d, want 6", got)
	}
}

func TestRunReleasesStaleClaims(t *testing.T) {
	t.Parallel()

	m := storetest.NewMemory()
	claim(t, m, "https://example.com/", 1, 0)
	m.AgeClaims(time.Hour)

	f := fetcherFunc(func(_ context.Context, u string) (*fetch.Result, error) {
		return page(u), nil
	})
	p, _ := newTestPool(m, f, approveAll(),
		WithInterval(5*time.Millisecond),
		WithStaleClaimAge(30*time.Minute),
	)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for m.TaskCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-errCh

	if got := m.Calls("ReleaseStaleTasks"); got != 1 {
		t.Errorf("ReleaseStaleTasks calls = %d, want 1", got)
	}
	if got := m.TaskCount(); got != 0 {
		t.Errorf("released task was not processed, TaskCount() = %d", got)
	}
}

func TestMinStaleClaimAge(t *testing.T) {
	t.Parallel()

	if got := MinStaleClaimAge(DefaultMaxDelay); got != 10*time.Minute {
		t.Errorf("MinStaleClaimAge(%v) = %v, want 10m", DefaultMaxDelay, got)
	}
	if got := MinStaleClaimAge(time.Second); got <= 3*time.Second {
		t.Errorf("MinStaleClaimAge(1s) = %v, want more than the task lifetime", got)
	}
}

// TestRunKeepsLiveClaims starts a second pool while the first one is still
// fetching the only task. The second pool asks for a stale claim age shorter
// than the claim, which must not hand the task over.
func TestRunKeepsLiveClaims(t *testing.T) {
	t.Parallel()

	m := storetest.NewMemory()
	rs, err := m.CreateResources(context.Background(), []string{"https://example.com/"})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.CreateTasks(context.Background(), []int64{rs[0].ID}, 1, 0); err != nil {
		t.Fatal(err)
	}

	var fetches atomic.Int32
	started := make(chan struct{}, 2)
	f := fetcherFunc(func(ctx context.Context, u string) (*fetch.Result, error) {
		fetches.Add(1)
		started <- struct{}{}
		select {
		case <-time.After(400 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return page(u), nil
	})
	first, _ := newTestPool(m, f, approveAll(),
		WithInterval(10*time.Millisecond), WithMaxDelay(time.Second))
	second, _ := newTestPool(m, f, approveAll(),
		WithInterval(10*time.Millisecond), WithMaxDelay(time.Second),
		WithStaleClaimAge(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	run := func(p *Pool) {
		defer wg.Done()
		if err := p.Run(ctx); err != nil {
			t.Errorf("Run() error = %v", err)
		}
	}
	wg.Add(1)
	go run(first)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first pool never fetched")
	}
	time.Sleep(150 * time.Millisecond)
	wg.Add(1)
	go run(second)

	deadline := time.Now().Add(5 * time.Second)
	for m.TaskCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	cancel()
	wg.Wait()

	if got := fetches.Load(); got != 1 {
		t.Errorf("fetches of the single task = %d, want 1", got)
	}
	if got := m.Calls("DeleteTask"); got != 1 {
		t.Errorf("DeleteTask calls = %d, want 1", got)
	}
}
