package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/scrapeflow/webscrape/internal/config"
	"github.com/scrapeflow/webscrape/internal/resolver"
	"github.com/scrapeflow/webscrape/internal/types"
)

// errChildAlreadyDone signals a child URL the checkpoint already marked
// done; expandField treats it as a silent skip, not a failure (§4.10:
// "Already-done child URLs are skipped").
var errChildAlreadyDone = errors.New("child url already processed")

// expandChildren walks a just-extracted record's field tree looking for
// follow_url fields, fetches each referenced URL, extracts nested_fields
// against the fetched page, and merges the result back via Record.MergeChild
// (§4.10). Total child fetches across one top-level record are bounded by
// job.MaxNestedURLs so a pathological fan-out can't stall the run.
func (e *Engine) expandChildren(ctx context.Context, doc *resolver.Document, rec *types.Record, fields []*config.FieldSpec, parentURL string) {
	budget := e.job.MaxNestedURLs
	e.expandFieldList(ctx, rec, fields, parentURL, &budget)
}

func (e *Engine) expandFieldList(ctx context.Context, rec *types.Record, fields []*config.FieldSpec, parentURL string, budget *int) {
	for _, f := range fields {
		if f.FollowURL {
			e.expandField(ctx, rec, f, parentURL, budget)
		}
		if len(f.Children) > 0 {
			// Nested children were already resolved into rec.Fields[f.Name]
			// as a map/list-of-maps; follow_url within Children is not
			// supported since those values never round-trip through a
			// Record of their own (§9: Children nests within one page,
			// follow_url always leaves the page).
			continue
		}
	}
}

func (e *Engine) expandField(ctx context.Context, rec *types.Record, f *config.FieldSpec, parentURL string, budget *int) {
	raw, ok := rec.Fields[f.Name]
	if !ok || raw == nil {
		return
	}

	urls := toURLList(raw)
	for _, raw := range urls {
		childURL := resolveChildURL(raw, parentURL, e.job.ResponseType)
		if childURL == "" {
			continue
		}

		if *budget <= 0 {
			e.logger.Warn("max_nested_urls budget exhausted, skipping remaining children", "field", f.Name)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		default:
		}

		child, err := e.fetchChild(ctx, childURL, parentURL, f.NestedFields)
		*budget--
		if err != nil {
			if errors.Is(err, errChildAlreadyDone) {
				continue
			}
			e.logger.Warn("child fetch failed, skipping", "url", childURL, "field", f.Name, "error", err)
			continue
		}

		rec.MergeChild(f.Name, parentURL, child)
	}
}

// resolveChildURL absolutizes a follow_url value against parentURL and, in
// JSON response mode, rewrites it per §4.10 ("append .json, strip trailing
// /") so a discovered HTML-style URL resolves to its JSON API counterpart.
func resolveChildURL(raw, parentURL string, responseType config.ResponseType) string {
	if raw == "" {
		return ""
	}

	abs := raw
	if base, err := url.Parse(parentURL); err == nil {
		if ref, err := url.Parse(raw); err == nil {
			abs = base.ResolveReference(ref).String()
		}
	}

	if responseType == config.ResponseJSON {
		abs = strings.TrimSuffix(abs, "/")
		if !strings.HasSuffix(abs, ".json") {
			abs += ".json"
		}
	}
	return abs
}

// fetchChild fetches one child URL (robots-checked, rate-limited,
// checkpointed like any other fetch) and extracts nestedFields from it.
func (e *Engine) fetchChild(ctx context.Context, childURL, parentURL string, nestedFields []*config.FieldSpec) (*types.Record, error) {
	if e.robots != nil && !e.robots.Allowed(childURL, e.logger) {
		return nil, fmt.Errorf("robots.txt disallows %s", childURL)
	}

	if e.checkpoint.IsDone(childURL) {
		return nil, fmt.Errorf("%w: %s", errChildAlreadyDone, childURL)
	}
	_ = e.checkpoint.MarkInProgress(childURL)

	if err := e.rateLimiter.Acquire(ctx); err != nil {
		return nil, err
	}

	req, err := types.NewRequest(e.job.Name, childURL, e.requestTimeout)
	if err != nil {
		return nil, err
	}
	req.ParentURL = parentURL
	if err := e.applyAuth(ctx, req); err != nil {
		return nil, err
	}

	resp, err := e.fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	doc, err := resolver.Parse(resp.Body, e.job.ResponseType, resp.FinalURL)
	if err != nil {
		return nil, err
	}

	child, err := resolver.ExtractFields(doc, nestedFields, resp.FinalURL)
	if err != nil {
		return nil, err
	}

	_ = e.checkpoint.MarkDone(childURL)
	return child, nil
}

func toURLList(v any) []string {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []any:
		urls := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				urls = append(urls, s)
			}
		}
		return urls
	default:
		return nil
	}
}
