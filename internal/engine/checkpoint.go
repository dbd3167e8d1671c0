package engine

import (
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// CheckpointStatus is the per-URL status recorded in the checkpoint store.
type CheckpointStatus string

const (
	StatusInProgress CheckpointStatus = "in_progress"
	StatusDone       CheckpointStatus = "done"
)

// CheckpointStore is the durable per-URL status log (§4.1): an embedded
// SQL store with WAL enabled so the single writer connection and any
// reader never block each other. Modeled on FranksOps-burr's
// internal/storage/sqlite/sqlite.go driver-registration/schema pattern;
// the in-memory done-set gives O(1) is_done lookups so the hot path never
// touches disk.
type CheckpointStore struct {
	db      *sql.DB
	jobName string

	mu   sync.Mutex
	done map[string]struct{} // in-memory mirror of status=done rows

	logger  *slog.Logger
	enabled bool
}

const checkpointSchema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	job_name TEXT NOT NULL,
	url TEXT NOT NULL,
	status TEXT NOT NULL,
	timestamp DATETIME NOT NULL,
	PRIMARY KEY (job_name, url)
);
`

// OpenCheckpointStore opens (creating if needed) the WAL-enabled SQLite
// checkpoint database under dir, and loads the job's done-set into memory.
// A failure to initialize disables checkpointing for the run rather than
// aborting it (§4.1 failure mode).
func OpenCheckpointStore(dir, jobName string, logger *slog.Logger) *CheckpointStore {
	logger = logger.With("component", "checkpoint_store", "job", jobName)
	store := &CheckpointStore{jobName: jobName, done: make(map[string]struct{}), logger: logger}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("checkpoint disabled: cannot create dir", "error", err)
		return store
	}

	dsn := filepath.Join(dir, "checkpoints.db") + "?_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		logger.Warn("checkpoint disabled: open failed", "error", err)
		return store
	}
	if _, err := db.Exec(checkpointSchema); err != nil {
		logger.Warn("checkpoint disabled: schema init failed", "error", err)
		_ = db.Close()
		return store
	}

	rows, err := db.Query(`SELECT url FROM checkpoints WHERE job_name = ? AND status = ?`, jobName, StatusDone)
	if err != nil {
		logger.Warn("checkpoint disabled: done-set load failed", "error", err)
		_ = db.Close()
		return store
	}
	defer rows.Close()
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			continue
		}
		store.done[url] = struct{}{}
	}

	store.db = db
	store.enabled = true
	logger.Info("checkpoint store ready", "done_count", len(store.done))
	return store
}

// IsDone is an in-memory lookup; it never touches disk.
func (c *CheckpointStore) IsDone(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.done[url]
	return ok
}

// MarkInProgress upserts status=in_progress, committed synchronously.
func (c *CheckpointStore) MarkInProgress(url string) error {
	if !c.enabled {
		return nil
	}
	_, err := c.db.Exec(
		`INSERT INTO checkpoints (job_name, url, status, timestamp) VALUES (?, ?, ?, ?)
		 ON CONFLICT(job_name, url) DO UPDATE SET status = excluded.status, timestamp = excluded.timestamp`,
		c.jobName, url, StatusInProgress, time.Now(),
	)
	if err != nil {
		c.logger.Warn("mark_in_progress failed", "url", url, "error", err)
	}
	return err
}

// MarkDone updates status=done and records url in the in-memory done-set.
func (c *CheckpointStore) MarkDone(url string) error {
	if !c.enabled {
		return nil
	}
	_, err := c.db.Exec(
		`INSERT INTO checkpoints (job_name, url, status, timestamp) VALUES (?, ?, ?, ?)
		 ON CONFLICT(job_name, url) DO UPDATE SET status = excluded.status, timestamp = excluded.timestamp`,
		c.jobName, url, StatusDone, time.Now(),
	)
	if err != nil {
		c.logger.Warn("mark_done failed", "url", url, "error", err)
		return err
	}
	c.mu.Lock()
	c.done[url] = struct{}{}
	c.mu.Unlock()
	return nil
}

// Incomplete returns URLs whose status is still in_progress — the recovery
// set on restart (§4.1, §8 invariant 2).
func (c *CheckpointStore) Incomplete() []string {
	if !c.enabled {
		return nil
	}
	rows, err := c.db.Query(`SELECT url FROM checkpoints WHERE job_name = ? AND status = ?`, c.jobName, StatusInProgress)
	if err != nil {
		c.logger.Warn("incomplete() query failed", "error", err)
		return nil
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err == nil {
			urls = append(urls, u)
		}
	}
	return urls
}

func (c *CheckpointStore) Close() error {
	if !c.enabled {
		return nil
	}
	return c.db.Close()
}

// Enabled reports whether the store initialized successfully.
func (c *CheckpointStore) Enabled() bool { return c.enabled }
