package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/crawlgraph/internal/approve"
	"github.com/nao1215/crawlgraph/internal/fetch"
	"github.com/nao1215/crawlgraph/internal/model"
)

// workResult is what the network part of a task produced. Nothing has been
// written to the store yet.
type workResult struct {
	resource model.Resource
	skip     bool
	result   *fetch.Result
	err      error
}

// processTask runs one task to completion.
//
// The fetch runs in its own goroutine and races the deadline timer; the
// select below settles the task exactly once. When the deadline wins, the
// fetch context is cancelled and whatever the fetch returns later is dropped.
// When the fetch wins, its results are written and the task is deleted.
// The writes and the deletion are each bounded by the max delay, which
// keeps the claim shorter than MinStaleClaimAge.
func (p *Pool) processTask(ctx context.Context, task model.Task) {
	started := time.Now()
	logger := p.logger.With("task", task.ID, "resource", task.ResourceID)

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan workResult, 1)
	go func() {
		results <- p.work(workCtx, task)
	}()

	deadline := time.NewTimer(p.maxDelay)
	defer deadline.Stop()

	var outcome string
	select {
	case res := <-results:
		deadline.Stop()
		writeCtx, cancelWrite := context.WithTimeout(ctx, p.maxDelay)
		outcome = p.commit(writeCtx, logger, task, res)
		cancelWrite()
	case <-deadline.C:
		cancel()
		writeCtx, cancelWrite := context.WithTimeout(ctx, p.maxDelay)
		outcome = p.timeout(writeCtx, logger, task)
		cancelWrite()
	}

	deleteCtx, cancelDelete := context.WithTimeout(ctx, p.maxDelay)
	defer cancelDelete()
	if err := p.store.DeleteTask(deleteCtx, task.ID); err != nil {
		logger.Warn("failed to delete task", "error", err)
	}
	p.finish(task, outcome, started)
	logger.Debug("task finished", "outcome", outcome, "elapsed", time.Since(started))
}

// work loads the resource and fetches it.
func (p *Pool) work(ctx context.Context, task model.Task) workResult {
	resources, err := p.store.FindValidResourcesByIDs(ctx, []int64{task.ResourceID})
	if err != nil {
		return workResult{err: err}
	}
	if len(resources) == 0 {
		return workResult{skip: true}
	}
	resource := resources[0]
	if resource.IsTerminal() {
		return workResult{resource: resource, skip: true}
	}

	result, err := p.fetcher.Fetch(ctx, resource.URL)
	return workResult{resource: resource, result: result, err: err}
}

// timeout marks the resource as timed out.
func (p *Pool) timeout(ctx context.Context, logger *slog.Logger, task model.Task) string {
	logger.Info("task timed out", "max_delay", p.maxDelay)
	if err := p.store.UpdateResource(ctx, task.ResourceID, model.WithError(model.OtherErrorTimeout)); err != nil {
		logger.Warn("failed to mark resource as timed out", "error", err)
	}
	return OutcomeTimeout
}

// commit writes what a settled fetch produced. A failing step is logged and
// does not prevent the following ones.
func (p *Pool) commit(ctx context.Context, logger *slog.Logger, task model.Task, res workResult) string {
	switch {
	case res.skip:
		logger.Debug("skipping task", "url", res.resource.URL)
		return OutcomeSkipped
	case res.err != nil:
		logger.Warn("failed to fetch resource", "url", res.resource.URL, "error", res.err)
		return OutcomeFetchError
	case res.result == nil:
		logger.Warn("fetcher returned no result", "url", res.resource.URL)
		return OutcomeFetchError
	}

	result := res.result
	resourceID := task.ResourceID
	if result.Redirected(res.resource.URL) {
		canonicalID, err := p.store.AddAlias(ctx, task.ResourceID, result.Resource.URL)
		if err != nil {
			logger.Warn("failed to add alias", "url", result.Resource.URL, "error", err)
		} else {
			resourceID = canonicalID
		}
	}

	update := model.ClearError()
	if result.Resource.OtherError != model.OtherErrorNone {
		tag := result.Resource.OtherError
		update.OtherError = &tag
	}
	if result.Resource.HTTPStatus != 0 {
		status := result.Resource.HTTPStatus
		update.HTTPStatus = &status
	}
	if err := p.store.UpdateResource(ctx, resourceID, update); err != nil {
		logger.Warn("failed to update resource", "resource", resourceID, "error", err)
	}

	if result.Expression == nil {
		return OutcomeDone
	}

	exprID, err := p.store.CreateExpression(ctx, result.Expression)
	if err != nil {
		logger.Warn("failed to create expression", "error", err)
	} else if err := p.store.AssociateWithExpression(ctx, resourceID, exprID); err != nil {
		logger.Warn("failed to associate expression", "expression", exprID, "error", err)
	}

	targets := p.saveLinks(ctx, logger, task, resourceID, result.Links)

	approved := p.policy.Approve(approve.Input{
		Depth:        task.Depth,
		WordsToMatch: p.wordsFor(task.TerritoireID),
		Expression:   result.Expression,
	})
	if approved {
		yes := true
		if err := p.store.UpdateAnnotation(ctx, resourceID, task.TerritoireID, nil, &yes); err != nil {
			logger.Warn("failed to approve resource", "error", err)
		}
	}

	if p.followUp && approved && len(targets) > 0 {
		if err := p.store.CreateTasks(ctx, targets, task.TerritoireID, task.Depth+1); err != nil {
			logger.Warn("failed to create follow-up tasks", "count", len(targets), "error", err)
		}
	}
	return OutcomeDone
}

// saveLinks records the page's references and returns the ids of the
// referenced resources other than the page itself.
func (p *Pool) saveLinks(ctx context.Context, logger *slog.Logger, task model.Task, sourceID int64, urls []string) []int64 {
	if len(urls) == 0 {
		return nil
	}
	resources, err := p.store.FindOrCreateResourcesForTerritoire(ctx, urls, task.TerritoireID)
	if err != nil {
		logger.Warn("failed to create link targets", "count", len(urls), "error", err)
		return nil
	}

	// A page linking to itself keeps its self edge, but is not queued again.
	links := make([]model.Link, 0, len(resources))
	targets := make([]int64, 0, len(resources))
	for _, r := range resources {
		links = append(links, model.Link{Source: sourceID, Target: r.ID})
		if r.ID != sourceID {
			targets = append(targets, r.ID)
		}
	}
	if len(links) == 0 {
		return nil
	}
	if err := p.store.CreateLinks(ctx, links); err != nil {
		logger.Warn("failed to create links", "count", len(links), "error", err)
	}
	return targets
}
