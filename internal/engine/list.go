package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/scrapeflow/webscrape/internal/resolver"
	"github.com/scrapeflow/webscrape/internal/types"
)

// runList drives the worker-pool list mode (§4.9): start_urls are
// deduplicated and filtered against the checkpoint's done-set, then N
// workers (job.Concurrency) drain a shared queue independently. One URL's
// failure is isolated to that URL — it never aborts its siblings, unlike
// the pagination chain.
func (e *Engine) runList(ctx context.Context) {
	queue := make(chan string, len(e.job.StartURLs))
	seen := make(map[string]struct{}, len(e.job.StartURLs))
	for _, u := range e.job.StartURLs {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		if e.checkpoint.IsDone(u) {
			continue
		}
		queue <- u
	}
	close(queue)

	var wg sync.WaitGroup
	for i := 0; i < e.job.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			e.listWorker(ctx, workerID, queue)
		}(i)
	}
	wg.Wait()
}

func (e *Engine) listWorker(ctx context.Context, workerID int, queue <-chan string) {
	logger := e.logger.With("worker", workerID)

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case url, ok := <-queue:
			if !ok {
				return
			}
			select {
			case <-e.stopCh:
				return
			default:
			}
			e.processListURL(ctx, logger, url)
			sleepJittered(ctx, 0.5, 1.5)
		}
	}
}

func (e *Engine) processListURL(ctx context.Context, logger *slog.Logger, url string) {
	if e.robots != nil && !e.robots.Allowed(url, e.logger) {
		e.stats.recordBlocked()
		logger.Warn("url skipped: robots disallow", "url", url)
		return
	}

	_ = e.checkpoint.MarkInProgress(url)

	if err := e.rateLimiter.Acquire(ctx); err != nil {
		return
	}

	req, err := types.NewRequest(e.job.Name, url, e.requestTimeout)
	if err != nil {
		e.stats.recordError()
		logger.Error("invalid list URL, skipping", "url", url, "error", err)
		return
	}
	if err := e.applyAuth(ctx, req); err != nil {
		e.stats.recordError()
		logger.Error("auth token refresh failed, skipping", "url", url, "error", err)
		return
	}

	resp, err := e.fetch(ctx, req)
	if err != nil {
		e.stats.recordError()
		e.stats.recordFailedURL(url)
		logger.Error("fetch failed, skipping", "url", url, "error", err)
		return
	}

	doc, err := resolver.Parse(resp.Body, e.job.ResponseType, resp.FinalURL)
	if err != nil {
		e.stats.recordError()
		logger.Error("parse failed, skipping", "url", url, "error", err)
		e.saveDebugSnapshot(url, resp.Body)
		return
	}

	record, err := resolver.ExtractFields(doc, e.job.Fields, resp.FinalURL)
	if err != nil {
		e.stats.recordError()
		logger.Error("extraction failed, skipping", "url", url, "error", err)
		e.saveDebugSnapshot(url, resp.Body)
		return
	}

	e.expandChildren(ctx, doc, record, e.job.Fields, resp.FinalURL)
	e.batcher.merge(record)
	e.stats.recordSuccess()

	_ = e.checkpoint.MarkDone(url)
}
