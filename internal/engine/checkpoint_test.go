package engine

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCheckpointMarkDoneIsDone(t *testing.T) {
	dir := t.TempDir()
	store := OpenCheckpointStore(dir, "job-a", testLogger())
	defer store.Close()

	if !store.Enabled() {
		t.Fatal("expected checkpoint store to be enabled")
	}

	url := "https://example.com/page/1"
	if store.IsDone(url) {
		t.Fatal("url should not be done before being marked")
	}

	if err := store.MarkInProgress(url); err != nil {
		t.Fatalf("mark in progress: %v", err)
	}
	if store.IsDone(url) {
		t.Fatal("in_progress must not count as done")
	}

	if err := store.MarkDone(url); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	if !store.IsDone(url) {
		t.Fatal("url should be done after MarkDone")
	}
}

func TestCheckpointIncompleteTracksInProgress(t *testing.T) {
	dir := t.TempDir()
	store := OpenCheckpointStore(dir, "job-b", testLogger())
	defer store.Close()

	_ = store.MarkInProgress("https://example.com/a")
	_ = store.MarkInProgress("https://example.com/b")
	_ = store.MarkDone("https://example.com/b")

	incomplete := store.Incomplete()
	if len(incomplete) != 1 || incomplete[0] != "https://example.com/a" {
		t.Fatalf("expected only the unfinished url, got %v", incomplete)
	}
}

func TestCheckpointReloadRestoresDoneSet(t *testing.T) {
	dir := t.TempDir()
	store := OpenCheckpointStore(dir, "job-c", testLogger())
	_ = store.MarkDone("https://example.com/done")
	_ = store.Close()

	reopened := OpenCheckpointStore(dir, "job-c", testLogger())
	defer reopened.Close()
	if !reopened.IsDone("https://example.com/done") {
		t.Fatal("done-set should survive a reopen of the same db file")
	}
}

func TestCheckpointDisabledOnBadDir(t *testing.T) {
	// A path that can't be created as a directory (it's a file) should
	// disable checkpointing rather than panic or error out the run.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	bad := filepath.Join(blocker, "nested")

	store := OpenCheckpointStore(bad, "job-d", testLogger())
	if store.Enabled() {
		t.Fatal("expected store to be disabled when its dir can't be created")
	}
	if err := store.MarkDone("https://example.com/x"); err != nil {
		t.Fatalf("disabled store should no-op, got error: %v", err)
	}
}
