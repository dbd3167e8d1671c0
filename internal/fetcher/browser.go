package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/scrapeflow/webscrape/internal/config"
	"github.com/scrapeflow/webscrape/internal/types"
)

// contextRotationInterval is how many page loads a browser context serves
// before it is torn down and replaced, bounding memory growth and keeping
// one browser fingerprint from accumulating too much history (§4.5).
const contextRotationInterval = 50

// BrowserFetcher implements Fetcher over a headless Chromium pool via
// go-rod/rod, driven by one job's interaction script
// (wait/scroll/click/fill/press/hover/key_press) and with page-count-based
// context rotation to bound memory growth.
type BrowserFetcher struct {
	browser *rod.Browser
	job     *config.JobConfig
	logger  *slog.Logger

	mu         sync.Mutex
	pagesUsed  int
	ctxBrowser *rod.Browser // current incognito context pages are opened in
}

// NewBrowserFetcher launches a stealth-patched headless Chromium instance
// for one job.
func NewBrowserFetcher(job *config.JobConfig, logger *slog.Logger) (*BrowserFetcher, error) {
	l := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	if len(job.Proxies) > 0 {
		l = l.Proxy(job.Proxies[0])
	}

	launchURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	ctxBrowser, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	logger.With("component", "browser_fetcher").Info("browser ready", "job", job.Name)
	return &BrowserFetcher{
		browser:    browser,
		ctxBrowser: ctxBrowser,
		job:        job,
		logger:     logger.With("component", "browser_fetcher"),
	}, nil
}

// Fetch navigates to req's URL, runs the job's interaction script, and
// returns the rendered HTML.
func (bf *BrowserFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	start := time.Now()

	page, err := bf.newPage()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}
	defer bf.release(page)

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = time.Duration(bf.job.RequestTimeoutS) * time.Second
	}
	timedPage := page.Context(ctx).Timeout(timeout)

	if ua := req.Headers.Get("User-Agent"); ua != "" {
		_ = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua})
	}
	if len(req.Headers) > 0 {
		headers := make([]string, 0, len(req.Headers)*2)
		for k, vals := range req.Headers {
			if k == "User-Agent" {
				continue
			}
			for _, v := range vals {
				headers = append(headers, k, v)
			}
		}
		if len(headers) > 0 {
			_, _ = page.SetExtraHeaders(headers)
		}
	}

	if err := timedPage.Navigate(req.URLString()); err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}
	if err := timedPage.WaitStable(300 * time.Millisecond); err != nil {
		bf.logger.Warn("page stability timeout, continuing", "url", req.URLString(), "error", err)
	}

	if bf.job.WaitForSelector != "" {
		if el, err := timedPage.Timeout(10 * time.Second).Element(bf.job.WaitForSelector); err == nil {
			_ = el.WaitVisible()
		}
	}

	for _, step := range bf.job.Interactions {
		bf.runInteraction(timedPage, step)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}

	finalURL := req.URLString()
	if info, err := page.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	duration := time.Since(start)
	resp := &types.Response{
		StatusCode: 200, // Rod does not surface the navigation's HTTP status directly
		Body:       []byte(html),
		Request:    req,
		Kind:       types.ResponseHTML,
		FinalURL:   finalURL,
		Duration:   duration,
		FetchedAt:  time.Now(),
	}

	bf.logger.Debug("browser fetch complete", "url", req.URLString(), "final_url", finalURL, "size", len(html), "duration", duration)
	return resp, nil
}

// namedKeys maps the interaction script's key names to rod's input.Key
// constants; unrecognized names are silently ignored.
var namedKeys = map[string]input.Key{
	"enter":      input.Enter,
	"tab":        input.Tab,
	"escape":     input.Escape,
	"space":      input.Space,
	"arrowdown":  input.ArrowDown,
	"arrowup":    input.ArrowUp,
	"arrowleft":  input.ArrowLeft,
	"arrowright": input.ArrowRight,
	"backspace":  input.Backspace,
}

// runInteraction executes one step of the job's interaction script
// (§4.5). Failures are logged and swallowed — a missed hover or click
// should not abort an otherwise-successful page render.
func (bf *BrowserFetcher) runInteraction(page *rod.Page, step config.Interaction) {
	switch step.Type {
	case "wait":
		d := time.Duration(step.Duration) * time.Millisecond
		if d <= 0 {
			d = 500 * time.Millisecond
		}
		time.Sleep(d)
	case "scroll":
		if _, err := page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
			bf.logger.Warn("scroll interaction failed", "error", err)
		}
	case "click":
		if el, err := page.Element(step.Selector); err == nil {
			if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
				bf.logger.Warn("click interaction failed", "selector", step.Selector, "error", err)
			}
		}
	case "fill":
		if el, err := page.Element(step.Selector); err == nil {
			if err := el.Input(step.Value); err != nil {
				bf.logger.Warn("fill interaction failed", "selector", step.Selector, "error", err)
			}
		}
	case "hover":
		if el, err := page.Element(step.Selector); err == nil {
			if err := el.Hover(); err != nil {
				bf.logger.Warn("hover interaction failed", "selector", step.Selector, "error", err)
			}
		}
	case "press", "key_press":
		if step.Selector != "" {
			if el, err := page.Element(step.Selector); err == nil {
				_ = el.Focus()
			}
		}
		if key, ok := namedKeys[step.Value]; ok {
			if err := page.Keyboard.Type(key); err != nil {
				bf.logger.Warn("key_press interaction failed", "key", step.Value, "error", err)
			}
		}
	default:
		bf.logger.Warn("unknown interaction type", "type", step.Type)
	}
}

// newPage opens a fresh stealth-patched page in the current incognito
// context, closing and recreating that context once
// contextRotationInterval pages have been served to bound memory growth
// (§4.5). Rotation replaces bf.ctxBrowser under bf.mu so a page opened
// concurrently always sees either the old or the new context, never a
// closed one.
func (bf *BrowserFetcher) newPage() (*rod.Page, error) {
	bf.mu.Lock()
	bf.pagesUsed++
	rotate := bf.pagesUsed%contextRotationInterval == 0
	old := bf.ctxBrowser
	if rotate {
		fresh, err := bf.browser.Incognito()
		if err != nil {
			bf.logger.Warn("context rotation failed, reusing current context", "error", err)
		} else {
			bf.ctxBrowser = fresh
		}
	}
	ctxBrowser := bf.ctxBrowser
	bf.mu.Unlock()

	if rotate && ctxBrowser != old {
		bf.logger.Debug("rotating browser context", "pages_served", bf.pagesUsed)
		if err := old.Close(); err != nil {
			bf.logger.Warn("closing rotated-out browser context failed", "error", err)
		}
	}

	return stealth.Page(ctxBrowser)
}

func (bf *BrowserFetcher) release(page *rod.Page) {
	_ = page.Close()
}

func (bf *BrowserFetcher) Close() error {
	bf.mu.Lock()
	ctxBrowser := bf.ctxBrowser
	bf.mu.Unlock()

	if ctxBrowser != nil {
		_ = ctxBrowser.Close()
	}
	if bf.browser != nil {
		return bf.browser.Close()
	}
	return nil
}

func (bf *BrowserFetcher) Type() string { return "browser" }
