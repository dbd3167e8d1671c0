package engine

import (
	"log/slog"
	"sync"

	"github.com/scrapeflow/webscrape/internal/sink"
	"github.com/scrapeflow/webscrape/internal/types"
)

// batcher is the single-mutex merge/flush point every fetch path funnels
// through (§4.11, §5 "single engine-wide mutex for batch state"). It
// applies the seen-set dedup policy, accumulates a pending batch, and
// detaches the batch before handing it to the sink so the sink's I/O never
// runs while the mutex is held.
type batcher struct {
	mu        sync.Mutex
	pending   []*types.Record
	batchSize int

	seen  *SeenSet
	sink  sink.Sink
	stats *Stats

	entriesAdded int
	logger       *slog.Logger
}

func newBatcher(s sink.Sink, seen *SeenSet, stats *Stats, batchSize int, logger *slog.Logger) *batcher {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &batcher{
		sink:      s,
		seen:      seen,
		stats:     stats,
		batchSize: batchSize,
		logger:    logger.With("component", "batcher"),
	}
}

// merge applies the dedup policy and appends to the pending batch, flushing
// once batchSize is reached. The seen-set check and the pending-batch
// mutation share b.mu so two concurrent callers with identical canonical
// hashes can never both observe "new" (§5: "seen-set + recent LRU +
// pending batch + FP counter: protected by one engine-wide mutex").
func (b *batcher) merge(rec *types.Record) {
	if rec == nil || rec.Empty() {
		return
	}

	hash := rec.CanonicalHash()
	var toFlush []*types.Record

	b.mu.Lock()
	switch b.seen.Check(hash) {
	case seenDuplicate:
		b.mu.Unlock()
		return
	case seenSuspectedFalsePositive:
		b.logger.Debug("suspected bloom false positive, keeping record")
	}

	b.pending = append(b.pending, rec)
	b.entriesAdded++
	if len(b.pending) >= b.batchSize {
		toFlush = b.pending
		b.pending = nil
	}
	b.mu.Unlock()

	b.stats.recordEntry()

	if toFlush != nil {
		b.flush(toFlush)
	}
}

// flushRemaining drains any partial batch left at shutdown or completion.
func (b *batcher) flushRemaining() {
	b.mu.Lock()
	toFlush := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(toFlush) > 0 {
		b.flush(toFlush)
	}
}

func (b *batcher) flush(batch []*types.Record) {
	if err := b.sink.Write(batch); err != nil {
		b.logger.Error("sink write failed", "count", len(batch), "error", err)
		return
	}
	b.logger.Debug("batch flushed", "count", len(batch), "total_entries", b.entriesAdded)
}
