// Package useragent provides a rotating pool of desktop browser
// User-Agent strings for the direct-HTTP fetcher (§4.4).
package useragent

import (
	"crypto/rand"
	"hash/fnv"
	"math/big"
	"strings"
	"sync/atomic"
)

// Defaults is the fallback pool used when New is given no user agents.
var Defaults = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
}

// Pool rotates through a fixed set of User-Agent strings.
type Pool struct {
	uas     []string
	counter atomic.Uint64
}

// New builds a Pool, falling back to Defaults if uas is empty.
func New(uas []string) *Pool {
	if len(uas) == 0 {
		uas = Defaults
	}
	copied := make([]string, len(uas))
	copy(copied, uas)
	return &Pool{uas: copied}
}

// Next returns the next User-Agent round-robin. Safe for concurrent use.
func (p *Pool) Next() string {
	if len(p.uas) == 0 {
		return ""
	}
	idx := p.counter.Add(1) - 1
	return p.uas[idx%uint64(len(p.uas))]
}

// Random returns a random User-Agent via crypto/rand, falling back to
// round-robin if the read fails.
func (p *Pool) Random() string {
	if len(p.uas) == 0 {
		return ""
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(p.uas))))
	if err != nil {
		return p.Next()
	}
	return p.uas[n.Int64()]
}

// PerHost deterministically returns the same User-Agent for every request
// to the same host, falling back to Next when host is empty. A scraper
// fetching many pages off one domain wants a consistent apparent browser
// across that session — rotating mid-domain is itself a bot-detection
// signal — whereas rotation should still happen across different target
// domains. Next/Random stay available for callers that want per-request
// rotation instead.
func (p *Pool) PerHost(host string) string {
	if len(p.uas) == 0 {
		return ""
	}
	if host == "" {
		return p.Next()
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(host)))
	return p.uas[h.Sum32()%uint32(len(p.uas))]
}
