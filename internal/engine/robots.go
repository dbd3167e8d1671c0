package engine

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsGate enforces robots.txt per origin (§4.7), modeled on
// FranksOps-burr's internal/scraper/robots.go fetch-and-cache pattern but
// backed here by github.com/temoto/robotstxt's parser instead of a
// hand-rolled one. One parsed robots.txt is cached per scheme+host; a
// fetch failure or parse failure fails open, allowing everything for that
// origin.
type RobotsGate struct {
	client *http.Client
	ua     string

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData
}

// NewRobotsGate builds a gate that fetches robots.txt with a 10s ceiling.
func NewRobotsGate(userAgent string) *RobotsGate {
	return &RobotsGate{
		client: &http.Client{Timeout: 10 * time.Second},
		ua:     userAgent,
		cache:  make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether userAgent may fetch rawURL, fetching and caching
// that origin's robots.txt on first use.
func (g *RobotsGate) Allowed(rawURL string, logger *slog.Logger) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	origin := u.Scheme + "://" + u.Host

	data := g.fetch(origin, logger)
	if data == nil {
		return true
	}
	return data.TestAgent(u.Path, g.ua)
}

func (g *RobotsGate) fetch(origin string, logger *slog.Logger) *robotstxt.RobotsData {
	g.mu.Lock()
	if data, ok := g.cache[origin]; ok {
		g.mu.Unlock()
		return data
	}
	g.mu.Unlock()

	resp, err := g.client.Get(origin + "/robots.txt")
	if err != nil {
		logger.Warn("robots.txt fetch failed, allowing", "origin", origin, "error", err)
		g.store(origin, nil)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		g.store(origin, nil)
		return nil
	}
	if resp.StatusCode >= 400 {
		logger.Warn("robots.txt fetch non-ok, allowing", "origin", origin, "status", resp.StatusCode)
		g.store(origin, nil)
		return nil
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		logger.Warn("robots.txt parse failed, allowing", "origin", origin, "error", err)
		g.store(origin, nil)
		return nil
	}

	g.store(origin, data)
	return data
}

func (g *RobotsGate) store(origin string, data *robotstxt.RobotsData) {
	g.mu.Lock()
	g.cache[origin] = data
	g.mu.Unlock()
}

// ErrRobotsDisallowed is returned by callers that wrap a disallowed fetch.
func ErrRobotsDisallowed(rawURL string) error {
	return fmt.Errorf("robots.txt disallows %s", rawURL)
}
