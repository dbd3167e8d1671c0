// Package sink implements the batcher's opaque output callback contract
// (§4.11, §6): an async-shaped interface invoked with one combined batch of
// records, laid out the way internal/storage (file.go/database.go) is laid
// out but addressing Record instead of Item.
package sink

import "github.com/scrapeflow/webscrape/internal/types"

// Sink receives flushed batches. Implementations must not mutate or retain
// the slice beyond the call (§6 sink callback contract).
type Sink interface {
	Name() string
	Write(batch []*types.Record) error
	Close() error
}

// MultiSink fans a batch out to several sinks, collecting the first error.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Name() string { return "multi" }

func (m *MultiSink) Write(batch []*types.Record) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Write(batch); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiSink) Close() error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
