package domain

import "fmt"

// OpType is the bulk operation applied to a single document.
type OpType string

const (
	OpIndex  OpType = "index"
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
)

// Validate reports whether the op type is one the bulk protocol accepts.
// An invalid op type is a configuration error, caught before any I/O.
func (o OpType) Validate() error {
	switch o {
	case OpIndex, OpCreate, OpUpdate:
		return nil
	}
	return fmt.Errorf("improper op type %q: must be index, create or update", o)
}

// Action is one write instruction for the document store. For index and
// create the Doc is the full document body; for update it is the partial
// merge body the store applies on top of the existing document.
type Action struct {
	Op    OpType
	Index string
	ID    string
	Doc   Document
}
