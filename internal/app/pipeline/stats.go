package pipeline

import "sync/atomic"

// Stats tracks pipeline counters. All methods are safe for concurrent use,
// so a metrics endpoint can read them while a run is in flight.
type Stats struct {
	transferred  atomic.Int64
	written      atomic.Int64
	deadLettered atomic.Int64
}

// Transferred is the number of records pulled from the source so far. It
// advances even for records later diverted to the dead-letter log.
func (s *Stats) Transferred() int64 { return s.transferred.Load() }

// Written is the number of documents acknowledged by the store.
func (s *Stats) Written() int64 { return s.written.Load() }

// DeadLettered is the number of records diverted to the dead-letter log.
func (s *Stats) DeadLettered() int64 { return s.deadLettered.Load() }

func (s *Stats) incTransferred(n int64)  { s.transferred.Add(n) }
func (s *Stats) incWritten(n int64)      { s.written.Add(n) }
func (s *Stats) incDeadLettered(n int64) { s.deadLettered.Add(n) }
