package fetcher

import (
	"compress/gzip"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/scrapeflow/webscrape/internal/config"
	"github.com/scrapeflow/webscrape/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testJob(cookiesFile string) *config.JobConfig {
	return &config.JobConfig{
		Name:            "http-fetcher-test",
		RequestTimeoutS: 5,
		CookiesFile:     cookiesFile,
	}
}

func TestHTTPFetcherFetchesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>hi</body></html>"))
	}))
	defer server.Close()

	f, err := NewHTTPFetcher(testJob(""), nil, discardLogger())
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	defer f.Close()

	req, err := types.NewRequest("job", server.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}

	resp, err := f.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("got status %d", resp.StatusCode)
	}
	if string(resp.Body) != "<html><body>hi</body></html>" {
		t.Fatalf("unexpected body: %s", resp.Body)
	}
	if resp.Kind != types.ResponseHTML {
		t.Fatalf("expected HTML kind, got %s", resp.Kind)
	}
}

func TestHTTPFetcherDecompressesGzip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		gz.Write([]byte("gzipped body"))
		gz.Close()
	}))
	defer server.Close()

	f, err := NewHTTPFetcher(testJob(""), nil, discardLogger())
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	defer f.Close()

	req, _ := types.NewRequest("job", server.URL, 5*time.Second)
	resp, err := f.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(resp.Body) != "gzipped body" {
		t.Fatalf("expected decompressed body, got %q", resp.Body)
	}
}

func TestHTTPFetcherRetryableOn429(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	f, err := NewHTTPFetcher(testJob(""), nil, discardLogger())
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	defer f.Close()

	req, _ := types.NewRequest("job", server.URL, 5*time.Second)
	_, err = f.Fetch(context.Background(), req)
	if err == nil {
		t.Fatal("expected an error for 429")
	}
	fetchErr, ok := err.(*types.FetchError)
	if !ok {
		t.Fatalf("expected *types.FetchError, got %T", err)
	}
	if !fetchErr.Retryable {
		t.Fatal("429 should be retryable")
	}
	if fetchErr.RetryAfter != 1*time.Second {
		t.Fatalf("expected retry-after of 1s, got %v", fetchErr.RetryAfter)
	}
}

func TestHTTPFetcherRetryableOn403(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("blocked"))
	}))
	defer server.Close()

	f, err := NewHTTPFetcher(testJob(""), nil, discardLogger())
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	defer f.Close()

	req, _ := types.NewRequest("job", server.URL, 5*time.Second)
	_, err = f.Fetch(context.Background(), req)
	if err == nil {
		t.Fatal("expected an error for 403")
	}
	fetchErr, ok := err.(*types.FetchError)
	if !ok {
		t.Fatalf("expected *types.FetchError, got %T", err)
	}
	if !fetchErr.Retryable {
		t.Fatal("403 should be retryable per §4.4")
	}
}

func TestHTTPFetcherSoftFailsOnOtherNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("not found page body"))
	}))
	defer server.Close()

	f, err := NewHTTPFetcher(testJob(""), nil, discardLogger())
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	defer f.Close()

	req, _ := types.NewRequest("job", server.URL, 5*time.Second)
	resp, err := f.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("404 should not raise, got %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.StatusCode)
	}
	if len(resp.Body) != 0 {
		t.Fatalf("expected empty body on soft failure, got %q", resp.Body)
	}
}

func TestHTTPFetcherClearsCookiesPerRequestWithoutCookiesFile(t *testing.T) {
	var sawCookieOnSecondRequest bool
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		if requestCount == 1 {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "leaky"})
			w.Write([]byte("first"))
			return
		}
		if _, err := r.Cookie("session"); err == nil {
			sawCookieOnSecondRequest = true
		}
		w.Write([]byte("second"))
	}))
	defer server.Close()

	f, err := NewHTTPFetcher(testJob(""), nil, discardLogger())
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	defer f.Close()

	req1, _ := types.NewRequest("job", server.URL, 5*time.Second)
	if _, err := f.Fetch(context.Background(), req1); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	req2, _ := types.NewRequest("job", server.URL, 5*time.Second)
	if _, err := f.Fetch(context.Background(), req2); err != nil {
		t.Fatalf("second fetch: %v", err)
	}

	if sawCookieOnSecondRequest {
		t.Fatal("cookie from first request leaked into second request without a cookies_file configured (§5)")
	}
}

func TestHTTPFetcherPersistsCookiesAcrossInstances(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc123"})
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	cookiesFile := t.TempDir() + "/cookies.json"

	f1, err := NewHTTPFetcher(testJob(cookiesFile), nil, discardLogger())
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	req, _ := types.NewRequest("job", server.URL, 5*time.Second)
	if _, err := f1.Fetch(context.Background(), req); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if err := f1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := os.Stat(cookiesFile); err != nil {
		t.Fatalf("expected cookies file to be written: %v", err)
	}

	f2, err := NewHTTPFetcher(testJob(cookiesFile), nil, discardLogger())
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	defer f2.Close()

	u, _ := types.NewRequest("job", server.URL, 5*time.Second)
	jarCookies := f2.jar.Cookies(u.URL)
	found := false
	for _, c := range jarCookies {
		if c.Name == "session" && c.Value == "abc123" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected warm-started jar to carry the persisted session cookie")
	}
}
