package sink

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/scrapeflow/webscrape/internal/types"
)

// JSONLSink is the default output sink (§4.11): one JSON line per record
// appended per flush, with an explicit file.Sync() so output is
// crash-consistent at-least-once.
type JSONLSink struct {
	path   string
	file   *os.File
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewJSONLSink opens (or creates) the job's output file for append.
func NewJSONLSink(outputDir, jobSlug string, logger *slog.Logger) (*JSONLSink, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(outputDir, jobSlug+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open jsonl output: %w", err)
	}
	return &JSONLSink{
		path:   path,
		file:   f,
		logger: logger.With("component", "jsonl_sink"),
	}, nil
}

func (s *JSONLSink) Name() string { return "jsonl" }

func (s *JSONLSink) Write(batch []*types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	enc := json.NewEncoder(s.file)
	for _, rec := range batch {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode jsonl record: %w", err)
		}
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("fsync jsonl output: %w", err)
	}
	s.count += len(batch)
	s.logger.Debug("batch flushed", "count", len(batch), "total", s.count)
	return nil
}

func (s *JSONLSink) Close() error {
	s.logger.Info("jsonl sink closing", "total_records", s.count, "path", s.path)
	return s.file.Close()
}
