package covidpipe

import (
	"io"
	"sync"
)

// progressFeed fans progress lines out to HTTP subscribers while writing
// them through to an optional base writer (stdout in progress mode). Each
// Write call carries one complete line.
type progressFeed struct {
	mu     sync.Mutex
	base   io.Writer
	subs   map[chan string]struct{}
	closed bool
}

func newProgressFeed(base io.Writer) *progressFeed {
	return &progressFeed{
		base: base,
		subs: make(map[chan string]struct{}),
	}
}

func (f *progressFeed) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	line := string(p)
	for ch := range f.subs {
		select {
		case ch <- line:
		default:
			// Stalled subscriber; drop the line rather than block the transfer.
		}
	}

	if f.base != nil {
		return f.base.Write(p)
	}
	return len(p), nil
}

// subscribe registers a listener and returns its channel plus a cancel
// function. The channel is closed when the feed closes.
func (f *progressFeed) subscribe() (<-chan string, func()) {
	ch := make(chan string, 16)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		close(ch)
		return ch, func() {}
	}
	f.subs[ch] = struct{}{}

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[ch]; ok {
			delete(f.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// close ends the feed; all subscriber channels are closed so streaming
// handlers terminate when the transfer drains.
func (f *progressFeed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for ch := range f.subs {
		delete(f.subs, ch)
		close(ch)
	}
}
