package store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/nset-ornl/covid19/internal/domain"
)

// fakeTransport captures bulk request bodies and plays back canned responses.
type fakeTransport struct {
	bodies    []string
	responses []string
	statuses  []int
	calls     int
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		f.bodies = append(f.bodies, string(b))
	}
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	status := http.StatusOK
	if idx < len(f.statuses) {
		status = f.statuses[idx]
	}
	header := http.Header{}
	header.Set("X-Elastic-Product", "Elasticsearch")
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(f.responses[idx])),
		Request:    req,
	}, nil
}

func newTestStore(t *testing.T, ft *fakeTransport) *Elastic {
	t.Helper()
	e, err := NewElastic(Config{
		Addresses: []string{"http://localhost:9200"},
		Index:     "covid19-custom-ornl",
		Transport: ft,
	})
	if err != nil {
		t.Fatalf("new elastic: %v", err)
	}
	return e
}

func TestBulkPayloadShape(t *testing.T) {
	ft := &fakeTransport{responses: []string{
		`{"took":5,"errors":false,"items":[{"index":{"_id":"a1","status":201}},{"update":{"_id":"a2","status":200}}]}`,
	}}
	e := newTestStore(t, ft)

	actions := []domain.Action{
		{Op: domain.OpIndex, ID: "a1", Doc: domain.Document{"county": "Shelby"}},
		{Op: domain.OpUpdate, ID: "a2", Doc: domain.Document{"cases": 12}},
	}
	results, err := e.Bulk(context.Background(), actions)
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 item results, got %d", len(results))
	}
	for _, r := range results {
		if r.Failed() {
			t.Fatalf("unexpected item failure: %v", r.Err)
		}
	}

	if len(ft.bodies) != 1 {
		t.Fatalf("expected one bulk submission, got %d", len(ft.bodies))
	}
	lines := strings.Split(strings.TrimSpace(ft.bodies[0]), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 NDJSON lines, got %d: %q", len(lines), ft.bodies[0])
	}
	if !strings.Contains(lines[0], `"index"`) || !strings.Contains(lines[0], `"_id":"a1"`) {
		t.Fatalf("bad index meta line: %s", lines[0])
	}
	if !strings.Contains(lines[1], `"county":"Shelby"`) {
		t.Fatalf("index body should be the full document: %s", lines[1])
	}
	if !strings.Contains(lines[2], `"update"`) {
		t.Fatalf("bad update meta line: %s", lines[2])
	}
	if !strings.Contains(lines[3], `"doc":{`) {
		t.Fatalf("update body should be wrapped as a merge body: %s", lines[3])
	}
}

func TestBulkSurfacesItemFailures(t *testing.T) {
	ft := &fakeTransport{responses: []string{
		`{"took":5,"errors":true,"items":[` +
			`{"index":{"_id":"ok","status":201}},` +
			`{"index":{"_id":"bad","status":400,"error":{"type":"mapper_parsing_exception","reason":"failed to parse"}}}]}`,
	}}
	e := newTestStore(t, ft)

	results, err := e.Bulk(context.Background(), []domain.Action{
		{Op: domain.OpIndex, ID: "ok", Doc: domain.Document{}},
		{Op: domain.OpIndex, ID: "bad", Doc: domain.Document{}},
	})
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if results[0].Failed() {
		t.Fatalf("first item should have succeeded")
	}
	if !results[1].Failed() {
		t.Fatalf("second item should have failed")
	}
	if !strings.Contains(results[1].Err.Error(), "mapper_parsing_exception") {
		t.Fatalf("item error should carry the store reason: %v", results[1].Err)
	}
}

func TestBulkSubmitErrorIsFatal(t *testing.T) {
	ft := &fakeTransport{
		responses: []string{`{"error":{"reason":"index is read only"},"status":503}`},
		statuses:  []int{http.StatusServiceUnavailable},
	}
	e := newTestStore(t, ft)

	_, err := e.Bulk(context.Background(), []domain.Action{
		{Op: domain.OpIndex, ID: "x", Doc: domain.Document{}},
	})
	if err == nil {
		t.Fatalf("expected submission failure")
	}
	if !strings.Contains(err.Error(), "bulk submit") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBulkEmptyBatchIsNoop(t *testing.T) {
	ft := &fakeTransport{responses: []string{`{}`}}
	e := newTestStore(t, ft)

	results, err := e.Bulk(context.Background(), nil)
	if err != nil || results != nil {
		t.Fatalf("expected no-op for empty batch, got %v, %v", results, err)
	}
	if ft.calls != 0 {
		t.Fatalf("expected no HTTP call for empty batch, got %d", ft.calls)
	}
}

func TestBulkUsesConfiguredIndex(t *testing.T) {
	ft := &fakeTransport{responses: []string{
		`{"took":1,"errors":false,"items":[{"create":{"_id":"n1","status":201}}]}`,
	}}
	e := newTestStore(t, ft)

	if _, err := e.Bulk(context.Background(), []domain.Action{
		{Op: domain.OpCreate, ID: "n1", Doc: domain.Document{}},
	}); err != nil {
		t.Fatalf("bulk: %v", err)
	}
	want := fmt.Sprintf(`"_index":%q`, "covid19-custom-ornl")
	if !strings.Contains(ft.bodies[0], want) {
		t.Fatalf("expected default index in meta line: %s", ft.bodies[0])
	}
}
