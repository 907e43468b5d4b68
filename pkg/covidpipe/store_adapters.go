package covidpipe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// ErrChannelStoreClosed is returned when a channel store is written to after
// being closed.
var ErrChannelStoreClosed = errors.New("covidpipe: channel store closed")

// DocumentBatchStore is invoked with ordered batches drained from the pipeline.
type DocumentBatchStore func([]Action) error

// NewCallbackStore adapts a DocumentBatchStore into a full DocumentStore
// implementation so callers can plug arbitrary functions without defining
// structs. The callback either accepts the whole batch or fails it; per-item
// rejection needs a real DocumentStore.
func NewCallbackStore(name string, fn DocumentBatchStore) DocumentStore {
	if name == "" {
		name = "callback"
	}
	return &callbackStore{name: name, fn: fn}
}

// NewChannelStore exposes batches via a channel; it returns the store, the
// read-only channel, and a close function that the caller should invoke
// during shutdown.
func NewChannelStore(name string, buffer int) (DocumentStore, <-chan []Action, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan []Action, buffer)
	s := &channelStore{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

type callbackStore struct {
	name string
	fn   DocumentBatchStore
}

func (s *callbackStore) Bulk(ctx context.Context, actions []Action) ([]ItemResult, error) {
	if s.fn == nil {
		return nil, fmt.Errorf("callback store %q: nil handler", s.name)
	}
	if len(actions) == 0 {
		return nil, nil
	}
	if err := s.fn(copyBatch(actions)); err != nil {
		return nil, err
	}
	return acceptAll(actions), nil
}

func (s *callbackStore) Name() string { return s.name }

type channelStore struct {
	name   string
	ch     chan []Action
	closed chan struct{}
	once   sync.Once
}

func (s *channelStore) Bulk(ctx context.Context, actions []Action) ([]ItemResult, error) {
	select {
	case <-s.closed:
		return nil, ErrChannelStoreClosed
	default:
	}

	if len(actions) == 0 {
		return nil, nil
	}

	batch := copyBatch(actions)

	select {
	case <-s.closed:
		return nil, ErrChannelStoreClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case s.ch <- batch:
		return acceptAll(actions), nil
	}
}

func (s *channelStore) Name() string { return s.name }

func (s *channelStore) close() {
	s.once.Do(func() {
		close(s.closed)
		close(s.ch)
	})
}

func copyBatch(actions []Action) []Action {
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

func acceptAll(actions []Action) []ItemResult {
	results := make([]ItemResult, len(actions))
	for i, act := range actions {
		results[i] = ItemResult{ID: act.ID, Op: act.Op, Status: http.StatusOK}
	}
	return results
}
