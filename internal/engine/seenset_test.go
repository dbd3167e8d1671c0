package engine

import (
	"path/filepath"
	"testing"
)

func TestSeenSetNewThenDuplicate(t *testing.T) {
	s := NewSeenSet(1000, 0.001, 100)

	if got := s.Check("hash-a"); got != seenNew {
		t.Fatalf("first check: got %v, want seenNew", got)
	}
	if got := s.Check("hash-a"); got != seenDuplicate {
		t.Fatalf("second check: got %v, want seenDuplicate", got)
	}
}

func TestSeenSetDistinctHashesAreNew(t *testing.T) {
	s := NewSeenSet(1000, 0.001, 100)
	for _, h := range []string{"a", "b", "c"} {
		if got := s.Check(h); got != seenNew {
			t.Fatalf("hash %q: got %v, want seenNew", h, got)
		}
	}
}

func TestSeenSetRecentLRUEviction(t *testing.T) {
	r := newRecentLRU(2)
	r.push("a")
	r.push("b")
	if !r.contains("a") || !r.contains("b") {
		t.Fatal("both entries should still be present")
	}
	r.push("c") // evicts "a"
	if r.contains("a") {
		t.Fatal("oldest entry should have been evicted")
	}
	if !r.contains("b") || !r.contains("c") {
		t.Fatal("b and c should remain after eviction")
	}
}

func TestSeenSetSaveAndReload(t *testing.T) {
	s := NewSeenSet(1000, 0.001, 100)
	s.Check("persisted-hash")

	path := filepath.Join(t.TempDir(), "seen.bloom")
	if err := s.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded := LoadSeenSet(path, 1000, 0.001, 100, testLogger())
	if got := reloaded.Check("persisted-hash"); got == seenNew {
		t.Fatal("reloaded filter should already contain the persisted hash")
	}
}

func TestSeenSetReloadGeometryMismatchStartsFresh(t *testing.T) {
	s := NewSeenSet(1000, 0.001, 100)
	s.Check("some-hash")
	path := filepath.Join(t.TempDir(), "seen.bloom")
	_ = s.Save(path)

	// Different n/p changes the filter's bit/hash geometry, so the saved
	// file must be rejected rather than misread.
	reloaded := LoadSeenSet(path, 50, 0.2, 100, testLogger())
	if got := reloaded.Check("some-hash"); got != seenNew {
		t.Fatal("mismatched geometry should yield a fresh filter")
	}
}
