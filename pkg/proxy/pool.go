// Package proxy implements round-robin proxy rotation with health tracking
// for the direct-HTTP fetcher (§4.4), detached from any one ambient config
// type so both the HTTP fetcher and the browser launcher can share one
// pool.
package proxy

import (
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

type entry struct {
	url     *url.URL
	mu      sync.Mutex
	healthy bool
	lastErr error
}

// Pool rotates a fixed set of proxy URLs, round-robin over the currently
// healthy subset.
type Pool struct {
	mu      sync.RWMutex
	entries []*entry
	index   atomic.Int64
}

// New builds a Pool from raw proxy URLs, skipping any that fail to parse.
func New(rawURLs []string) *Pool {
	p := &Pool{entries: make([]*entry, 0, len(rawURLs))}
	for _, raw := range rawURLs {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		p.entries = append(p.entries, &entry{url: u, healthy: true})
	}
	return p
}

// Empty reports whether the pool has no usable proxies.
func (p *Pool) Empty() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries) == 0
}

// Next returns the next healthy proxy URL, round-robin, or nil if none are
// healthy (direct connection).
func (p *Pool) Next() *url.URL {
	p.mu.RLock()
	defer p.mu.RUnlock()

	healthy := p.healthyLocked()
	if len(healthy) == 0 {
		return nil
	}
	idx := p.index.Add(1) % int64(len(healthy))
	return healthy[idx].url
}

// ProxyFunc adapts Next to the http.Transport.Proxy signature.
func (p *Pool) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(*http.Request) (*url.URL, error) {
		return p.Next(), nil
	}
}

// MarkFailed flags a proxy unhealthy after a request through it errors.
func (p *Pool) MarkFailed(target *url.URL, err error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, e := range p.entries {
		if e.url.String() == target.String() {
			e.mu.Lock()
			e.healthy = false
			e.lastErr = err
			e.mu.Unlock()
			return
		}
	}
}

func (p *Pool) healthyLocked() []*entry {
	out := make([]*entry, 0, len(p.entries))
	for _, e := range p.entries {
		e.mu.Lock()
		ok := e.healthy
		e.mu.Unlock()
		if ok {
			out = append(out, e)
		}
	}
	return out
}

// HealthCheck probes every proxy against target and updates health state.
// It makes one blocking request per proxy; the engine does not call it.
func (p *Pool) HealthCheck(target string) {
	p.mu.RLock()
	entries := make([]*entry, len(p.entries))
	copy(entries, p.entries)
	p.mu.RUnlock()

	client := &http.Client{Timeout: 10 * time.Second}
	for _, e := range entries {
		client.Transport = &http.Transport{Proxy: http.ProxyURL(e.url)}
		_, err := client.Get(target)
		e.mu.Lock()
		e.healthy = err == nil
		e.lastErr = err
		e.mu.Unlock()
	}
}
