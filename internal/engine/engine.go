// Package engine implements the orchestration core: checkpointing,
// deduplication, rate limiting, the two run drivers (pagination, list),
// recursive child-URL expansion, and the batching sink writer described
// in §4 and §5.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/scrapeflow/webscrape/internal/config"
	"github.com/scrapeflow/webscrape/internal/fetcher"
	"github.com/scrapeflow/webscrape/internal/sink"
	"github.com/scrapeflow/webscrape/internal/types"
)

// Engine runs exactly one JobConfig from start to completion or
// cancellation (§4.12). It owns every per-run resource: checkpoint store,
// seen-set, rate limiter, fetcher, robots gate, auth manager, batcher.
type Engine struct {
	job *config.JobConfig
	cfg *config.Config

	logger *slog.Logger

	checkpoint  *CheckpointStore
	seen        *SeenSet
	rateLimiter *RateLimiter
	robots      *RobotsGate
	auth        *AuthManager
	fetcher     fetcher.Fetcher
	batcher     *batcher
	stats       *Stats

	requestTimeout time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New builds an Engine for job, wiring all per-run resources from cfg.
// Job-level fields must already have ApplyDefaults/ValidateJob applied.
func New(ctx context.Context, cfg *config.Config, job *config.JobConfig, logger *slog.Logger) (*Engine, error) {
	logger = logger.With("component", "engine", "job", job.Name)

	var auth *AuthManager
	if job.Authentication != nil {
		var err error
		auth, err = NewAuthManager(job.Authentication)
		if err != nil {
			return nil, fmt.Errorf("auth manager: %w", err)
		}
	}

	var robots *RobotsGate
	if job.RespectRobotsTxt {
		ua := "webscrape"
		if len(cfg.Defaults.UserAgents) > 0 {
			ua = cfg.Defaults.UserAgents[0]
		}
		robots = NewRobotsGate(ua)
	}

	var checkpoint *CheckpointStore
	if job.UseCheckpointing && cfg.Checkpoint.Enabled {
		checkpoint = OpenCheckpointStore(cfg.Checkpoint.Dir, job.Name, logger)
	} else {
		checkpoint = &CheckpointStore{jobName: job.Name, done: make(map[string]struct{}), logger: logger}
	}

	seenPath := filepath.Join(cfg.Bloom.Dir, slug(job.Name)+".bloom")
	seen := LoadSeenSet(seenPath, cfg.Bloom.ExpectedItems, cfg.Bloom.FalsePositive, cfg.Bloom.RecentLRUSize, logger)

	f, err := fetcher.New(job, cfg.Defaults.UserAgents, logger)
	if err != nil {
		return nil, fmt.Errorf("build fetcher: %w", err)
	}

	s, err := sink.New(ctx, cfg.Sink, slug(job.Name), logger)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("build sink: %w", err)
	}

	stats := newStats()

	e := &Engine{
		job:            job,
		cfg:            cfg,
		logger:         logger,
		checkpoint:     checkpoint,
		seen:           seen,
		rateLimiter:    NewRateLimiter(job.RateLimit),
		robots:         robots,
		auth:           auth,
		fetcher:        f,
		stats:          stats,
		requestTimeout: time.Duration(job.RequestTimeoutS) * time.Second,
		stopCh:         make(chan struct{}),
	}
	e.batcher = newBatcher(s, seen, stats, cfg.Sink.BatchSize, logger)
	return e, nil
}

// Run executes the job to completion, dispatching on mode (§4.8/§4.9), and
// always flushes pending output and persists the seen-set before
// returning — on success, cancellation, or mid-run failure alike.
func (e *Engine) Run(ctx context.Context) error {
	defer e.shutdown()

	e.logger.Info("run starting", "mode", e.job.Mode)

	recovered := e.checkpoint.Incomplete()
	if len(recovered) > 0 {
		e.logger.Info("resuming incomplete urls from prior run", "count", len(recovered))
	}

	switch e.job.Mode {
	case config.ModePagination:
		if e.job.Pagination == nil {
			return fmt.Errorf("pagination mode requires a pagination spec")
		}
		e.runPagination(ctx)
	case config.ModeList:
		e.runList(ctx)
	default:
		return fmt.Errorf("unsupported mode: %s", e.job.Mode)
	}

	snap := e.stats.Snapshot()
	e.logger.Info("run complete",
		"success", snap.Success, "errors", snap.Errors, "blocked", snap.Blocked,
		"entries", snap.Entries, "elapsed", snap.Elapsed, "false_positives", e.seen.FalsePositiveCount())
	return nil
}

// Stop signals a cooperative shutdown; in-flight fetches finish but no new
// ones start.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

// Stats returns a snapshot of the run's counters.
func (e *Engine) Stats() Snapshot { return e.stats.Snapshot() }

// applyAuth attaches the job's bearer token to req, refreshing it first if
// it's within its expiry headroom (§4.6). A no-op when the job has no
// authentication configured.
func (e *Engine) applyAuth(ctx context.Context, req *types.Request) error {
	if e.auth == nil {
		return nil
	}
	token, err := e.auth.Token(ctx)
	if err != nil {
		return err
	}
	req.Headers.Set("Authorization", "Bearer "+token)
	return nil
}

func (e *Engine) shutdown() {
	e.batcher.flushRemaining()

	seenPath := filepath.Join(e.cfg.Bloom.Dir, slug(e.job.Name)+".bloom")
	if err := e.seen.Save(seenPath); err != nil {
		e.logger.Warn("seen-set save failed", "error", err)
	}

	if err := e.checkpoint.Close(); err != nil {
		e.logger.Warn("checkpoint close failed", "error", err)
	}

	if err := e.fetcher.Close(); err != nil {
		e.logger.Warn("fetcher close failed", "error", err)
	}
}

func slug(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "job"
	}
	return string(out)
}
