package sink

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/scrapeflow/webscrape/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestJSONLSinkWritesOneLinePerRecord(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONLSink(dir, "job", discardLogger())
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	rec1 := types.NewRecord("https://example.com/1")
	rec1.Set("id", "1")
	rec2 := types.NewRecord("https://example.com/2")
	rec2.Set("id", "2")

	if err := s.Write([]*types.Record{rec1, rec2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(dir + "/job.jsonl")
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lines := 0
	for scanner.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("line %d not valid json: %v", lines, err)
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("expected 2 lines, got %d", lines)
	}
}

func TestJSONLSinkAppendsAcrossWrites(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONLSink(dir, "job", discardLogger())
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	rec := types.NewRecord("https://example.com/1")
	rec.Set("id", "1")
	if err := s.Write([]*types.Record{rec}); err != nil {
		t.Fatalf("write 1: %v", err)
	}
	if err := s.Write([]*types.Record{rec}); err != nil {
		t.Fatalf("write 2: %v", err)
	}
	s.Close()

	data, err := os.ReadFile(dir + "/job.jsonl")
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	reopened, err := NewJSONLSink(dir, "job", discardLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if err := reopened.Write([]*types.Record{rec}); err != nil {
		t.Fatalf("write 3: %v", err)
	}

	final, err := os.ReadFile(dir + "/job.jsonl")
	if err != nil {
		t.Fatalf("read final: %v", err)
	}
	if len(final) <= len(data) {
		t.Fatal("expected reopening the sink to append rather than truncate")
	}
}
