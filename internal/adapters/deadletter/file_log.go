package deadletter

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/nset-ornl/covid19/internal/ports"
)

// FileLog is an append-only JSON-lines log of undeliverable records. Each
// line carries its entry ID, so the log can be scanned and replayed after a
// restart without a separate index.
type FileLog struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *bufio.Writer
	nextID ports.DeadLetterID
	count  int64
	size   int64
}

type diskEntry struct {
	ID uint64 `json:"id"`
	ports.DeadLetterEntry
}

func NewFileLog(dir string) (*FileLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "dead_letter.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	l := &FileLog{
		path:   path,
		file:   f,
		writer: bufio.NewWriterSize(f, 64<<10),
	}
	if err := l.bootstrap(); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

// bootstrap scans the existing log to recover the next entry ID and running
// stats. A torn trailing line (crash mid-append) is truncated away.
func (l *FileLog) bootstrap() error {
	stat, err := l.file.Stat()
	if err != nil {
		return err
	}
	if stat.Size() == 0 {
		return nil
	}

	rf, err := os.Open(l.path)
	if err != nil {
		return err
	}
	defer rf.Close()

	var (
		offset   int64
		complete int64
		lastID   uint64
		count    int64
	)
	reader := bufio.NewReader(rf)
	for {
		line, err := reader.ReadBytes('\n')
		offset += int64(len(line))
		if err != nil {
			if errors.Is(err, io.EOF) {
				break // no trailing newline: torn write, drop it
			}
			return fmt.Errorf("dead-letter scan: %w", err)
		}
		var e diskEntry
		if jsonErr := json.Unmarshal(bytes.TrimSpace(line), &e); jsonErr != nil {
			return fmt.Errorf("dead-letter scan at offset %d: %w", offset, jsonErr)
		}
		complete = offset
		lastID = e.ID
		count++
	}

	if complete < stat.Size() {
		if err := l.file.Truncate(complete); err != nil {
			return err
		}
	}
	if _, err := l.file.Seek(0, io.SeekEnd); err != nil {
		return err
	}

	l.nextID = ports.DeadLetterID(lastID)
	l.count = count
	l.size = complete
	return nil
}

func (l *FileLog) Append(e ports.DeadLetterEntry) (ports.DeadLetterID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID + 1
	line, err := json.Marshal(diskEntry{ID: uint64(id), DeadLetterEntry: e})
	if err != nil {
		return 0, fmt.Errorf("dead-letter encode: %w", err)
	}
	line = append(line, '\n')
	if _, err := l.writer.Write(line); err != nil {
		return 0, fmt.Errorf("dead-letter append: %w", err)
	}
	if err := l.writer.Flush(); err != nil {
		return 0, fmt.Errorf("dead-letter flush: %w", err)
	}

	l.nextID = id
	l.count++
	l.size += int64(len(line))
	return id, nil
}

// Iterate replays entries with ID >= from in append order. The callback may
// stop the scan by returning an error.
func (l *FileLog) Iterate(from ports.DeadLetterID, fn func(id ports.DeadLetterID, e ports.DeadLetterEntry) error) error {
	l.mu.Lock()
	l.writer.Flush()
	l.mu.Unlock()

	rf, err := os.Open(l.path)
	if err != nil {
		return err
	}
	defer rf.Close()

	scanner := bufio.NewScanner(rf)
	scanner.Buffer(make([]byte, 0, 64<<10), 8<<20)
	for scanner.Scan() {
		var e diskEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return fmt.Errorf("dead-letter decode: %w", err)
		}
		if ports.DeadLetterID(e.ID) < from {
			continue
		}
		if err := fn(ports.DeadLetterID(e.ID), e.DeadLetterEntry); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (l *FileLog) Stats() ports.DeadLetterStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ports.DeadLetterStats{
		LatestAppended: l.nextID,
		Entries:        l.count,
		SizeBytes:      l.size,
	}
}

func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writer.Flush(); err != nil {
		return err
	}
	return l.file.Close()
}

var _ ports.DeadLetter = (*FileLog)(nil)
