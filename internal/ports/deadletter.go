package ports

import (
	"time"

	"github.com/nset-ornl/covid19/internal/domain"
)

// DeadLetterID uniquely identifies an entry in the dead-letter log.
type DeadLetterID uint64

// DeadLetterEntry records one record or action the pipeline could not
// deliver: an enrichment that exhausted its retry budget, or an item the
// store rejected.
type DeadLetterEntry struct {
	Stage  string          `json:"stage"` // "enrich" or "store"
	DocID  string          `json:"doc_id,omitempty"`
	Reason string          `json:"reason"`
	Doc    domain.Document `json:"doc,omitempty"`
	At     time.Time       `json:"at"`
}

// DeadLetter is an append-only log of undeliverable records.
type DeadLetter interface {
	Append(e DeadLetterEntry) (DeadLetterID, error)
	Iterate(from DeadLetterID, fn func(id DeadLetterID, e DeadLetterEntry) error) error
	Stats() DeadLetterStats
}

// DeadLetterStats exposes log metadata for observability.
type DeadLetterStats struct {
	LatestAppended DeadLetterID
	Entries        int64
	SizeBytes      int64
}
