package engine

import "testing"

func TestStatsRecordFailedURLAppendsToSnapshot(t *testing.T) {
	s := newStats()
	s.recordFailedURL("http://example.com/a")
	s.recordFailedURL("http://example.com/b")

	snap := s.Snapshot()
	if len(snap.FailedURLs) != 2 {
		t.Fatalf("expected 2 failed urls, got %v", snap.FailedURLs)
	}
	if snap.FailedURLs[0] != "http://example.com/a" || snap.FailedURLs[1] != "http://example.com/b" {
		t.Fatalf("unexpected failed urls: %v", snap.FailedURLs)
	}
}

func TestStatsCountersIndependentOfFailedURLs(t *testing.T) {
	s := newStats()
	s.recordSuccess()
	s.recordError()
	s.recordFailedURL("http://example.com/a")

	snap := s.Snapshot()
	if snap.Success != 1 || snap.Errors != 1 {
		t.Fatalf("unexpected counters: %+v", snap)
	}
	if len(snap.FailedURLs) != 1 {
		t.Fatalf("expected 1 failed url, got %d", len(snap.FailedURLs))
	}
}
