package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scrapeflow/webscrape/internal/types"
)

// PostgresSink is an optional durable sink backed by jackc/pgx/v5, grounded
// on FranksOps-burr/internal/storage/postgres/postgres.go.
type PostgresSink struct {
	pool   *pgxpool.Pool
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS records (
	id BIGSERIAL PRIMARY KEY,
	source_url TEXT NOT NULL,
	fields JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`

func NewPostgresSink(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres sink: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres sink: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create sink schema: %w", err)
	}
	return &PostgresSink{pool: pool, logger: logger.With("component", "postgres_sink")}, nil
}

func (s *PostgresSink) Name() string { return "postgres" }

func (s *PostgresSink) Write(batch []*types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin sink tx: %w", err)
	}

	for _, rec := range batch {
		fieldsJSON, err := json.Marshal(rec.Fields)
		if err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("marshal record fields: %w", err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO records (source_url, fields, created_at) VALUES ($1, $2, $3)`,
			rec.SourceURL, fieldsJSON, time.Now(),
		)
		if err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("insert record: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit sink tx: %w", err)
	}
	s.count += len(batch)
	s.logger.Debug("batch flushed", "count", len(batch), "total", s.count)
	return nil
}

func (s *PostgresSink) Close() error {
	s.logger.Info("postgres sink closing", "total_records", s.count)
	s.pool.Close()
	return nil
}
