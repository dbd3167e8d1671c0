package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/scrapeflow/webscrape/internal/config"
	"github.com/scrapeflow/webscrape/internal/types"
	"github.com/scrapeflow/webscrape/pkg/fingerprint"
	"github.com/scrapeflow/webscrape/pkg/proxy"
	"github.com/scrapeflow/webscrape/pkg/useragent"
)

// HTTPFetcher implements Fetcher with net/http plus a uTLS-fingerprinted
// transport, driven entirely from one JobConfig rather than a global
// engine config.
type HTTPFetcher struct {
	transport     http.RoundTripper
	timeout       time.Duration
	checkRedirect func(*http.Request, []*http.Request) error

	// client is used only when cookiesFile is set, so the warm-started
	// session jar (§3 cookies_file) persists and accumulates across every
	// fetch this HTTPFetcher makes. When cookiesFile is empty, Fetch
	// builds a throwaway client per call instead (see Fetch) so concurrent
	// list-mode workers (internal/engine/list.go) sharing one HTTPFetcher
	// never race over a shared jar.
	client *http.Client
	jar    http.CookieJar

	uas     *useragent.Pool
	proxies *proxy.Pool
	headers map[string]string
	logger  *slog.Logger
	maxBody int64

	cookiesFile string
	mu          sync.Mutex
	origins     map[string]struct{}
}

// NewHTTPFetcher builds an HTTPFetcher scoped to one job.
func NewHTTPFetcher(job *config.JobConfig, defaultUserAgents []string, logger *slog.Logger) (*HTTPFetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	_ = loadCookiesFile(job.CookiesFile, jar)

	var proxyPool *proxy.Pool
	var proxyFn func(*http.Request) (*url.URL, error)
	if len(job.Proxies) > 0 {
		proxyPool = proxy.New(job.Proxies)
		proxyFn = proxyPool.ProxyFunc()
	}

	transport, err := fingerprint.Transport(fingerprint.ProfileChrome, proxyFn)
	if err != nil {
		return nil, fmt.Errorf("build tls transport: %w", err)
	}
	if t, ok := transport.(*http.Transport); ok {
		t.DisableCompression = true // decompression handled explicitly below
	}

	timeout := time.Duration(job.RequestTimeoutS) * time.Second
	checkRedirect := func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return fmt.Errorf("max redirects (10) reached")
		}
		return nil
	}

	client := &http.Client{
		Transport:     transport,
		Jar:           jar,
		Timeout:       timeout,
		CheckRedirect: checkRedirect,
	}

	return &HTTPFetcher{
		transport:     transport,
		timeout:       timeout,
		checkRedirect: checkRedirect,
		client:        client,
		jar:           jar,
		uas:           useragent.New(defaultUserAgents),
		proxies:       proxyPool,
		headers:       job.Headers,
		logger:        logger.With("component", "http_fetcher"),
		maxBody:       25 << 20, // 25MB ceiling
		cookiesFile:   job.CookiesFile,
		origins:       make(map[string]struct{}),
	}, nil
}

// clientFor returns the http.Client to use for one Fetch call. With a
// cookies_file configured, every call reuses the persistent session jar
// so cookies accumulate and are later saved (session.go). Otherwise each
// call gets its own throwaway client sharing the same transport but an
// empty jar, so no cookie set by one request ever leaks into the next
// (§5 "cookies are cleared per request in direct-HTTP mode... unless
// cookies are explicitly loaded from a file").
func (f *HTTPFetcher) clientFor() *http.Client {
	if f.cookiesFile != "" {
		return f.client
	}
	freshJar, err := cookiejar.New(nil)
	if err != nil {
		return f.client
	}
	return &http.Client{
		Transport:     f.transport,
		Jar:           freshJar,
		Timeout:       f.timeout,
		CheckRedirect: f.checkRedirect,
	}
}

// Fetch performs one HTTP request and normalizes its result into a
// types.Response, retrying at the caller's discretion on a retryable
// types.FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, orDefault(req.Method, http.MethodGet), req.URLString(), nil)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: false}
	}

	httpReq.Header.Set("User-Agent", f.uas.PerHost(req.URL.Host))
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")
	httpReq.Header.Set("Connection", "keep-alive")

	for k, v := range f.headers {
		httpReq.Header.Set(k, v)
	}
	for k, vals := range req.Headers {
		for _, v := range vals {
			httpReq.Header.Set(k, v)
		}
	}

	start := time.Now()
	httpResp, err := f.clientFor().Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: isRetryableError(err)}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(httpResp.Header.Get("Retry-After"))
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, &types.FetchError{
			URL:        req.URLString(),
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("HTTP 429: rate limited: %s", strings.TrimSpace(string(body))),
			Retryable:  true,
			RetryAfter: retryAfter,
		}
	}
	// §4.4: 403/429/5xx are retryable (likely transient bot-detection or
	// overload); any other non-2xx is a soft failure, not retried here.
	if httpResp.StatusCode == http.StatusForbidden || httpResp.StatusCode >= 500 {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
		return nil, &types.FetchError{
			URL:        req.URLString(),
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, string(body)),
			Retryable:  true,
		}
	}

	// Any other non-2xx (404, 400, 401, ...) is a soft failure: the body is
	// discarded and an empty response is handed upstream rather than
	// raising, so the driver records it as an ordinary empty extraction
	// instead of a retry/abort (§4.4 "returns empty string on other
	// non-2xx").
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(httpResp.Body, f.maxBody))
		return &types.Response{
			StatusCode: httpResp.StatusCode,
			Headers:    httpResp.Header,
			Body:       nil,
			Request:    req,
			Kind:       types.ResponseHTML,
			FinalURL:   req.URLString(),
			Duration:   duration,
			FetchedAt:  time.Now(),
		}, nil
	}

	var reader io.Reader = io.LimitReader(httpResp.Body, f.maxBody)
	reader, err = decompressReader(httpResp, reader)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: false}
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}

	kind := types.ResponseHTML
	if ct := httpResp.Header.Get("Content-Type"); strings.Contains(ct, "json") {
		kind = types.ResponseJSON
	}

	finalURL := req.URLString()
	if httpResp.Request != nil && httpResp.Request.URL != nil {
		finalURL = httpResp.Request.URL.String()
	}

	resp := &types.Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
		Request:    req,
		Kind:       kind,
		FinalURL:   finalURL,
		Cookies:    httpResp.Cookies(),
		Duration:   duration,
		FetchedAt:  time.Now(),
	}

	f.mu.Lock()
	f.origins[req.URL.Scheme+"://"+req.URL.Host] = struct{}{}
	f.mu.Unlock()

	f.logger.Debug("fetch complete", "url", req.URLString(), "status", resp.StatusCode, "size", len(body), "duration", duration)
	return resp, nil
}

func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()

	f.mu.Lock()
	origins := make([]string, 0, len(f.origins))
	for o := range f.origins {
		origins = append(origins, o)
	}
	f.mu.Unlock()

	if err := saveCookiesFile(f.cookiesFile, f.jar, origins); err != nil {
		f.logger.Warn("cookies file save failed", "error", err)
	}
	return nil
}

func (f *HTTPFetcher) Type() string { return "http" }

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNRESET) || errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return true
		}
	}
	return false
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil {
		if secs > 120 {
			secs = 120
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		d := time.Until(t)
		if d < 0 {
			return time.Second
		}
		if d > 2*time.Minute {
			return 2 * time.Minute
		}
		return d
	}
	return 5 * time.Second
}
