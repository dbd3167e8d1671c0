package sink

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/scrapeflow/webscrape/internal/types"
)

// SQLiteSink is an optional durable sink backed by modernc.org/sqlite (pure
// Go, no cgo), grounded on FranksOps-burr/internal/storage/sqlite/sqlite.go.
type SQLiteSink struct {
	db     *sql.DB
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

const sinkSchema = `
CREATE TABLE IF NOT EXISTS records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_url TEXT NOT NULL,
	fields TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
`

func NewSQLiteSink(dsn string, logger *slog.Logger) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite sink: %w", err)
	}
	if _, err := db.Exec(sinkSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sink schema: %w", err)
	}
	return &SQLiteSink{db: db, logger: logger.With("component", "sqlite_sink")}, nil
}

func (s *SQLiteSink) Name() string { return "sqlite" }

func (s *SQLiteSink) Write(batch []*types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin sink tx: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO records (source_url, fields, created_at) VALUES (?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare sink insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range batch {
		fieldsJSON, err := json.Marshal(rec.Fields)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("marshal record fields: %w", err)
		}
		if _, err := stmt.Exec(rec.SourceURL, string(fieldsJSON), time.Now()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sink tx: %w", err)
	}
	s.count += len(batch)
	s.logger.Debug("batch flushed", "count", len(batch), "total", s.count)
	return nil
}

func (s *SQLiteSink) Close() error {
	s.logger.Info("sqlite sink closing", "total_records", s.count)
	return s.db.Close()
}
