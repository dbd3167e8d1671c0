package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scrapeflow/webscrape/internal/config"
)

// New builds the configured sink for one job, keeping per-job output paths
// disjoint by slugified job name (§9 "process-wide state" note).
func New(ctx context.Context, cfg config.SinkConfig, jobSlug string, logger *slog.Logger) (Sink, error) {
	switch cfg.Type {
	case "", "jsonl":
		return NewJSONLSink(cfg.OutputDir, jobSlug, logger)
	case "sqlite":
		return NewSQLiteSink(cfg.DSN, logger)
	case "postgres":
		return NewPostgresSink(ctx, cfg.DSN, logger)
	case "mongo":
		return NewMongoSink(cfg.DSN, cfg.Database, cfg.Collection, logger)
	default:
		return nil, fmt.Errorf("unsupported sink type: %s", cfg.Type)
	}
}
