package deadletter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nset-ornl/covid19/internal/domain"
	"github.com/nset-ornl/covid19/internal/ports"
)

func TestFileLogAppendIterateAndReopen(t *testing.T) {
	dir := t.TempDir()

	l, err := NewFileLog(dir)
	if err != nil {
		t.Fatalf("new log: %v", err)
	}

	e1 := ports.DeadLetterEntry{Stage: "enrich", DocID: "abc", Reason: "retry budget exhausted", At: time.Now().UTC()}
	e2 := ports.DeadLetterEntry{Stage: "store", DocID: "def", Reason: "mapper_parsing_exception", Doc: domain.Document{"county": "Shelby"}, At: time.Now().UTC()}

	id1, err := l.Append(e1)
	if err != nil || id1 != 1 {
		t.Fatalf("append 1: %v id=%d", err, id1)
	}
	id2, err := l.Append(e2)
	if err != nil || id2 != 2 {
		t.Fatalf("append 2: %v id=%d", err, id2)
	}

	var stages []string
	if err := l.Iterate(1, func(id ports.DeadLetterID, e ports.DeadLetterEntry) error {
		stages = append(stages, e.Stage)
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(stages) != 2 || stages[0] != "enrich" || stages[1] != "store" {
		t.Fatalf("unexpected entries: %v", stages)
	}

	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	l2, err := NewFileLog(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l2.Close()

	stats := l2.Stats()
	if stats.LatestAppended != 2 || stats.Entries != 2 {
		t.Fatalf("expected 2 recovered entries, got %+v", stats)
	}

	id3, err := l2.Append(ports.DeadLetterEntry{Stage: "store", Reason: "late"})
	if err != nil || id3 != 3 {
		t.Fatalf("append after reopen: %v id=%d", err, id3)
	}
}

func TestFileLogIterateFromOffset(t *testing.T) {
	l, err := NewFileLog(t.TempDir())
	if err != nil {
		t.Fatalf("new log: %v", err)
	}
	defer l.Close()

	for i := 0; i < 5; i++ {
		if _, err := l.Append(ports.DeadLetterEntry{Stage: "store", Reason: "r"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	var seen int
	if err := l.Iterate(4, func(id ports.DeadLetterID, e ports.DeadLetterEntry) error {
		seen++
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if seen != 2 {
		t.Fatalf("expected entries 4 and 5, got %d", seen)
	}
}

func TestFileLogTruncatesTornWrite(t *testing.T) {
	dir := t.TempDir()

	l, err := NewFileLog(dir)
	if err != nil {
		t.Fatalf("new log: %v", err)
	}
	if _, err := l.Append(ports.DeadLetterEntry{Stage: "enrich", Reason: "r"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Simulate a crash mid-append: a trailing line without a newline.
	path := filepath.Join(dir, "dead_letter.log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString(`{"id":2,"stage":"sto`); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	f.Close()

	l2, err := NewFileLog(dir)
	if err != nil {
		t.Fatalf("reopen over torn write: %v", err)
	}
	defer l2.Close()

	stats := l2.Stats()
	if stats.Entries != 1 || stats.LatestAppended != 1 {
		t.Fatalf("torn write should be dropped, got %+v", stats)
	}
}
