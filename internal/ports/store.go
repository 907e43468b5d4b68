package ports

import (
	"context"

	"github.com/nset-ornl/covid19/internal/domain"
)

// ItemResult is the store's acknowledgment for one action in a bulk
// submission. Err is nil for accepted items.
type ItemResult struct {
	ID     string
	Op     domain.OpType
	Status int
	Err    error
}

// Failed reports whether the store rejected the item.
func (r ItemResult) Failed() bool { return r.Err != nil }

// DocumentStore writes batches of actions to the document store using its
// streaming bulk protocol. Bulk returns one ItemResult per submitted action,
// in submission order; a non-nil error means the whole batch failed to
// submit. Items already acknowledged stay committed, there is no rollback.
type DocumentStore interface {
	Bulk(ctx context.Context, actions []domain.Action) ([]ItemResult, error)
	Name() string
}
