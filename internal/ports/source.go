package ports

import (
	"context"
	"iter"

	"github.com/nset-ornl/covid19/internal/domain"
)

// RecordSource streams rows from the relational source as a lazy, finite,
// non-restartable sequence. The sequence owns whatever server-side resources
// it opens (cursor, transaction) and releases them on normal exhaustion,
// early stop and failure alike. A yielded error is fatal for the stream.
type RecordSource interface {
	Stream(ctx context.Context) iter.Seq2[domain.Record, error]
}
