// Package fetcher implements the two request-fetching backends: a direct
// HTTP client with uTLS fingerprinting and brotli/gzip/deflate
// decompression, and a headless-browser pool for JS-rendered pages (§4.4,
// §4.5). Package resolver never imports this package directly — the
// engine wires whichever Fetcher a job needs behind the shared interface.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scrapeflow/webscrape/internal/config"
	"github.com/scrapeflow/webscrape/internal/types"
)

// Fetcher is the interface both backends implement.
type Fetcher interface {
	// Fetch retrieves the content at req's URL.
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier ("http" or "browser").
	Type() string
}

// New builds the fetcher backend a job requires: a headless browser when
// use_playwright is set, otherwise the direct-HTTP client (§4.4/§4.5).
func New(job *config.JobConfig, defaultUserAgents []string, logger *slog.Logger) (Fetcher, error) {
	if job.UsePlaywright {
		bf, err := NewBrowserFetcher(job, logger)
		if err != nil {
			return nil, fmt.Errorf("browser fetcher: %w", err)
		}
		return bf, nil
	}

	hf, err := NewHTTPFetcher(job, defaultUserAgents, logger)
	if err != nil {
		return nil, fmt.Errorf("http fetcher: %w", err)
	}
	return hf, nil
}
