package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats holds the run's counters (§3), updated via lock-free atomics since
// every fetch-path goroutine touches them on every request. failedURLs is
// the one non-atomic field (§8 S5/S6 need the list, not just a count) and
// is guarded by its own mutex rather than folded into the atomic set.
type Stats struct {
	success int64
	errors  int64
	skipped int64
	blocked int64
	entries int64

	startedAt time.Time

	failedMu   sync.Mutex
	failedURLs []string
}

func newStats() *Stats {
	return &Stats{startedAt: time.Now()}
}

func (s *Stats) recordSuccess() { atomic.AddInt64(&s.success, 1) }
func (s *Stats) recordError()   { atomic.AddInt64(&s.errors, 1) }
func (s *Stats) recordSkipped() { atomic.AddInt64(&s.skipped, 1) }
func (s *Stats) recordBlocked() { atomic.AddInt64(&s.blocked, 1) }
func (s *Stats) recordEntry()   { atomic.AddInt64(&s.entries, 1) }

// recordFailedURL appends to failed_urls (§8 S5/S6): a URL whose fetch
// exhausted its retries or otherwise failed terminally for this run.
func (s *Stats) recordFailedURL(url string) {
	s.failedMu.Lock()
	defer s.failedMu.Unlock()
	s.failedURLs = append(s.failedURLs, url)
}

func (s *Stats) FailedURLs() []string {
	s.failedMu.Lock()
	defer s.failedMu.Unlock()
	out := make([]string, len(s.failedURLs))
	copy(out, s.failedURLs)
	return out
}

// Snapshot is an immutable point-in-time read of Stats, safe to log or
// serve from a metrics endpoint.
type Snapshot struct {
	Success    int64         `json:"success"`
	Errors     int64         `json:"errors"`
	Skipped    int64         `json:"skipped"`
	Blocked    int64         `json:"blocked"`
	Entries    int64         `json:"entries"`
	Elapsed    time.Duration `json:"elapsed"`
	PerSecond  float64       `json:"per_second"`
	FailedURLs []string      `json:"failed_urls"`
}

func (s *Stats) Snapshot() Snapshot {
	elapsed := time.Since(s.startedAt)
	success := atomic.LoadInt64(&s.success)
	perSecond := 0.0
	if elapsed.Seconds() > 0 {
		perSecond = float64(success) / elapsed.Seconds()
	}
	return Snapshot{
		Success:    success,
		Errors:     atomic.LoadInt64(&s.errors),
		Skipped:    atomic.LoadInt64(&s.skipped),
		Blocked:    atomic.LoadInt64(&s.blocked),
		Entries:    atomic.LoadInt64(&s.entries),
		Elapsed:    elapsed,
		PerSecond:  perSecond,
		FailedURLs: s.FailedURLs(),
	}
}
