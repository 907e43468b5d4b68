package pipeline

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"time"

	"github.com/nset-ornl/covid19/internal/domain"
	"github.com/nset-ornl/covid19/internal/ports"
)

// DefaultChunkSize matches the source fetch size, so one bulk request
// usually carries one cursor batch.
const DefaultChunkSize = 500

// BulkSink drains an action sequence into the document store in fixed-size
// batches. Item-level write failures are diverted to the dead-letter log;
// request-level failures abort the drain.
type BulkSink struct {
	store ports.DocumentStore
	chunk int
	stats *Stats
	obs   ports.Observability
	dlq   ports.DeadLetter

	progress io.Writer
	reported int64
	drained  func()
}

func NewBulkSink(store ports.DocumentStore, chunk int, stats *Stats, obs ports.Observability, dlq ports.DeadLetter) *BulkSink {
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	if stats == nil {
		stats = &Stats{}
	}
	return &BulkSink{store: store, chunk: chunk, stats: stats, obs: obs, dlq: dlq}
}

// SetProgress directs a progress line to w after every flush that advanced
// the transfer count. A nil writer disables progress output.
func (s *BulkSink) SetProgress(w io.Writer) { s.progress = w }

// Drain pulls the sequence to exhaustion, flushing full batches as they
// accumulate and the partial tail at the end. An error yielded by the
// sequence or returned by the store stops the drain immediately.
func (s *BulkSink) Drain(ctx context.Context, actions iter.Seq2[domain.Action, error]) error {
	batch := make([]domain.Action, 0, s.chunk)
	for act, err := range actions {
		if err != nil {
			return err
		}
		batch = append(batch, act)
		if len(batch) >= s.chunk {
			if err := s.flush(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if s.drained != nil {
		s.drained()
	}
	return s.flush(ctx, batch)
}

func (s *BulkSink) flush(ctx context.Context, batch []domain.Action) error {
	if len(batch) == 0 {
		s.emitProgress()
		return nil
	}
	start := time.Now()
	results, err := s.store.Bulk(ctx, batch)
	if err != nil {
		return fmt.Errorf("bulk write to %s: %w", s.store.Name(), err)
	}
	if s.obs != nil {
		s.obs.ObserveLatency("covid_bulk_flush_latency_seconds", time.Since(start).Seconds())
	}
	written := 0
	for i, res := range results {
		if res.Failed() {
			var doc domain.Document
			if i < len(batch) {
				doc = batch[i].Doc
			}
			s.divert(res, doc)
			continue
		}
		written++
	}
	s.stats.incWritten(int64(written))
	if s.obs != nil {
		s.obs.IncCounter("covid_documents_written_total", float64(written))
	}
	s.emitProgress()
	return nil
}

// divert records a rejected item in the dead-letter log, keeping the
// document so the entry can be replayed. A dead-letter append failure is
// logged but never turns an item failure into a run failure.
func (s *BulkSink) divert(res ports.ItemResult, doc domain.Document) {
	s.stats.incDeadLettered(1)
	entry := ports.DeadLetterEntry{
		Stage:  "store",
		DocID:  res.ID,
		Reason: res.Err.Error(),
		Doc:    doc,
		At:     time.Now().UTC(),
	}
	if s.dlq == nil {
		if s.obs != nil {
			s.obs.LogError("document rejected", res.Err, ports.Field{Key: "doc_id", Value: res.ID})
		}
		return
	}
	id, err := s.dlq.Append(entry)
	if err != nil {
		if s.obs != nil {
			s.obs.LogError("dead letter append failed", err, ports.Field{Key: "doc_id", Value: res.ID})
		}
		return
	}
	if s.obs != nil {
		s.obs.RecordDeadLetter(id, res.ID, res.Err)
	}
}

// emitProgress writes one line per advance of the transfer count. Repeated
// flushes at the same count stay silent, so the line sequence is strictly
// increasing and ends at the total.
func (s *BulkSink) emitProgress() {
	if s.progress == nil {
		return
	}
	n := s.stats.Transferred()
	if n == s.reported {
		return
	}
	s.reported = n
	fmt.Fprintf(s.progress, "Documents transferred: %d\n", n)
	switch f := s.progress.(type) {
	case http.Flusher:
		f.Flush()
	case interface{ Flush() error }:
		_ = f.Flush()
	}
}
