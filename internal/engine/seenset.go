package engine

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// SeenSet is the memory-bounded probabilistic dedup set (§3, §4.2): a
// Bloom filter sized from expected item count and target false-positive
// rate, backed by github.com/bits-and-blooms/bloom/v3 (the companion
// package to bits-and-blooms/bitset). A small exact LRU of recently-added
// hashes disambiguates suspected false positives so no true-new record is
// ever dropped.
type SeenSet struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
	recent *recentLRU

	n  uint
	p  float64

	fpCount int
}

// NewSeenSet builds a fresh Bloom filter sized for n expected items at
// false-positive rate p, with a recent-exact LRU of the given capacity.
func NewSeenSet(n uint, p float64, recentCapacity int) *SeenSet {
	return &SeenSet{
		filter: bloom.NewWithEstimates(n, p),
		recent: newRecentLRU(recentCapacity),
		n:      n,
		p:      p,
	}
}

// seenResult is the outcome of checking one canonical hash against the
// seen-set, per the batcher dedup policy (§4.2 steps 1-4).
type seenResult int

const (
	seenNew seenResult = iota
	seenDuplicate
	seenSuspectedFalsePositive
)

// Check applies the seen-set dedup policy for one record hash and mutates
// membership accordingly. Callers must hold whatever lock guards the
// batcher's shared state; Check itself is not separately synchronized
// against concurrent batcher mutation — the engine batcher does that with
// its own mutex (§5 "single engine-wide mutex").
func (s *SeenSet) Check(hash string) seenResult {
	key := []byte(hash)

	if !s.filter.Test(key) {
		s.filter.Add(key)
		s.recent.push(hash)
		return seenNew
	}
	if s.recent.contains(hash) {
		return seenDuplicate
	}
	s.recent.push(hash)
	s.fpCount++
	return seenSuspectedFalsePositive
}

// FalsePositiveCount returns the number of suspected Bloom false positives
// observed this run (logged at completion, §4.2).
func (s *SeenSet) FalsePositiveCount() int { return s.fpCount }

// Save persists the Bloom filter (its m, k and bit set, via the library's
// WriteTo) to path, creating the parent directory if needed.
func (s *SeenSet) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = s.filter.WriteTo(f)
	return err
}

// LoadSeenSet loads a previously-saved Bloom filter from path, validating
// that its geometry matches a filter built from the same (n, p). On any
// mismatch or read failure it returns a fresh filter (§4.2 "ignore the
// file and start fresh").
func LoadSeenSet(path string, n uint, p float64, recentCapacity int, logger *slog.Logger) *SeenSet {
	fresh := NewSeenSet(n, p, recentCapacity)

	f, err := os.Open(path)
	if err != nil {
		return fresh
	}
	defer f.Close()

	loaded := &bloom.BloomFilter{}
	if _, err := loaded.ReadFrom(f); err != nil {
		logger.Warn("seen-set load failed, starting fresh", "error", err)
		return fresh
	}
	if loaded.Cap() != fresh.filter.Cap() || loaded.K() != fresh.filter.K() {
		logger.Warn("seen-set geometry mismatch, starting fresh",
			"loaded_cap", loaded.Cap(), "loaded_k", loaded.K(),
			"expected_cap", fresh.filter.Cap(), "expected_k", fresh.filter.K())
		return fresh
	}

	fresh.filter = loaded
	return fresh
}

// recentLRU is a fixed-capacity exact-hash ring buffer disambiguating
// Bloom false positives (§4.2 "recent"). No pack dependency covers a
// bounded ring buffer of this shape, so it is hand-rolled on
// container/ring-style indexing rather than adopting a generic cache
// library for a ~20-line structure.
type recentLRU struct {
	mu       sync.Mutex
	capacity int
	order    []string
	set      map[string]struct{}
	head     int
}

func newRecentLRU(capacity int) *recentLRU {
	return &recentLRU{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		set:      make(map[string]struct{}, capacity),
	}
}

func (r *recentLRU) contains(hash string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.set[hash]
	return ok
}

func (r *recentLRU) push(hash string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.set[hash]; ok {
		return
	}

	if len(r.order) < r.capacity {
		r.order = append(r.order, hash)
		r.set[hash] = struct{}{}
		return
	}

	evicted := r.order[r.head]
	delete(r.set, evicted)
	r.order[r.head] = hash
	r.set[hash] = struct{}{}
	r.head = (r.head + 1) % r.capacity
}
