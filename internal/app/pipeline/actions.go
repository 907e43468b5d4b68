package pipeline

import (
	"errors"

	"github.com/nset-ornl/covid19/internal/domain"
)

// ActionBuilder stamps documents into store write instructions. The op type
// and target index are validated once at construction, so Build itself
// cannot fail.
type ActionBuilder struct {
	op    domain.OpType
	index string
}

func NewActionBuilder(op domain.OpType, index string) (*ActionBuilder, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}
	if index == "" {
		return nil, errors.New("target index is required")
	}
	return &ActionBuilder{op: op, index: index}, nil
}

func (b *ActionBuilder) Build(id string, doc domain.Document) domain.Action {
	return domain.Action{Op: b.op, Index: b.index, ID: id, Doc: doc}
}
