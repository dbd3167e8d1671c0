package engine

import (
	"context"
	"math/rand"
	"time"

	"github.com/scrapeflow/webscrape/internal/config"
	"github.com/scrapeflow/webscrape/internal/resolver"
	"github.com/scrapeflow/webscrape/internal/types"
)

// runPagination drives the sequential pagination mode (§4.8): one URL in
// flight at a time, chasing a "next" link extracted from each page, until
// max_pages is reached, the next-link selector comes up empty, or the
// engine is shutting down. A mid-chain failure (robots disallow, fetch
// error, extraction error) abandons the rest of the run rather than
// guessing at a recovery point — matching §9 open question (a).
func (e *Engine) runPagination(ctx context.Context) {
	current := e.job.BaseURL
	pagesScraped := 0
	maxPages := e.job.Pagination.MaxPages

	for pagesScraped < maxPages && current != "" {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		default:
		}

		logger := e.logger.With("url", current, "page", pagesScraped+1)

		if e.robots != nil && !e.robots.Allowed(current, logger) {
			e.stats.recordBlocked()
			logger.Warn("pagination stopped: robots disallow")
			return
		}

		alreadyDone := e.checkpoint.IsDone(current)
		if alreadyDone {
			logger.Debug("page already marked done by a prior run, re-fetching to re-derive the next link")
		}
		_ = e.checkpoint.MarkInProgress(current)

		if err := e.rateLimiter.Acquire(ctx); err != nil {
			return
		}

		req, err := types.NewRequest(e.job.Name, current, e.requestTimeout)
		if err != nil {
			e.stats.recordError()
			logger.Error("invalid pagination URL, abandoning run", "error", err)
			return
		}
		if err := e.applyAuth(ctx, req); err != nil {
			e.stats.recordError()
			logger.Error("auth token refresh failed, abandoning run", "error", err)
			return
		}

		resp, err := e.fetch(ctx, req)
		if err != nil {
			e.stats.recordError()
			e.stats.recordFailedURL(current)
			logger.Error("fetch failed, abandoning pagination run", "error", err)
			return
		}

		doc, err := resolver.Parse(resp.Body, e.job.ResponseType, resp.FinalURL)
		if err != nil {
			e.stats.recordError()
			logger.Error("parse failed, abandoning pagination run", "error", err)
			e.saveDebugSnapshot(current, resp.Body)
			return
		}

		record, err := resolver.ExtractFields(doc, e.job.Fields, resp.FinalURL)
		if err != nil {
			e.stats.recordError()
			logger.Error("extraction failed, abandoning pagination run", "error", err)
			e.saveDebugSnapshot(current, resp.Body)
			return
		}

		e.expandChildren(ctx, doc, record, e.job.Fields, resp.FinalURL)
		e.batcher.merge(record)
		e.stats.recordSuccess()

		_ = e.checkpoint.MarkDone(current)
		pagesScraped++

		next, err := resolveNextLink(doc, e.job.Pagination.Selector, resp.FinalURL)
		if err != nil || next == "" {
			logger.Debug("no further next-link, pagination complete")
			return
		}
		current = next

		sleepJittered(ctx, e.job.MinDelay, e.job.MaxDelay)
	}
}

// resolveNextLink extracts and absolutizes the pagination "next" URL.
func resolveNextLink(doc *resolver.Document, sel config.Selector, baseURL string) (string, error) {
	field := &config.FieldSpec{
		Name:      "_next",
		Selectors: []config.Selector{sel},
		Attribute: "href",
		Transformers: []config.Transformer{
			{Name: config.TransformToAbsoluteURL},
		},
	}
	val, err := resolver.ExtractFields(doc, []*config.FieldSpec{field}, baseURL)
	if err != nil {
		return "", err
	}
	next, _ := val.Fields["_next"].(string)
	return next, nil
}

// sleepJittered waits a uniform random duration in [min, max] seconds,
// honoring ctx cancellation (§4.8 "sleep uniform(min_delay, max_delay)").
func sleepJittered(ctx context.Context, min, max float64) {
	if max <= min {
		max = min
	}
	d := time.Duration((min + rand.Float64()*(max-min)) * float64(time.Second))
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// maxFetchAttempts is the total number of attempts (initial + 2 retries)
// per §4.4/§7: "Three attempts total, exponential backoff (2-10s)."
const maxFetchAttempts = 3

// fetch dispatches through the active fetcher and is the single point every
// driver calls through, so future backends (browser vs http) stay opaque to
// pagination.go/list.go. A retryable FetchError (403/429/5xx, network
// timeout, browser navigation error) is retried up to maxFetchAttempts
// total with exponential backoff between 2s and 10s; a Retry-After header
// overrides the backoff for that attempt. Terminal failure, or a non-
// retryable error, returns immediately.
func (e *Engine) fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		req.RetryCount = attempt - 1
		resp, err := e.fetcher.Fetch(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		fetchErr, ok := err.(*types.FetchError)
		if !ok || !fetchErr.Retryable || attempt == maxFetchAttempts {
			return nil, err
		}

		wait := fetchErr.RetryAfter
		if wait <= 0 {
			wait = backoffDuration(attempt)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, lastErr
}

// backoffDuration computes the exponential backoff for a given attempt
// number, clamped to the 2-10s window from §4.4.
func backoffDuration(attempt int) time.Duration {
	d := time.Duration(attempt*attempt) * time.Second
	if d < 2*time.Second {
		d = 2 * time.Second
	}
	if d > 10*time.Second {
		d = 10 * time.Second
	}
	return d
}
