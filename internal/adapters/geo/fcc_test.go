package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nset-ornl/covid19/internal/domain"
)

const fccBody = `{"Block":{"FIPS":"471570158002000"},"County":{"FIPS":"47157","name":"Shelby"},"State":{"FIPS":"47","code":"TN","name":"Tennessee"},"status":"OK"}`

func newTestClient(url string, policy RetryPolicy) *Client {
	return New(Config{Endpoint: url + "?latitude={latitude}&longitude={longitude}", Policy: policy}, nil)
}

func TestResolveTrimsToScope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("latitude") == "" || r.URL.Query().Get("longitude") == "" {
			t.Errorf("missing coordinates in request: %s", r.URL.RawQuery)
		}
		w.Write([]byte(fccBody))
	}))
	defer srv.Close()

	cases := []struct {
		name    string
		scope   domain.Scope
		present []string
		absent  []string
	}{
		{"state only", domain.ScopeState, []string{"State"}, []string{"County", "Block"}},
		{"county", domain.ScopeCounty, []string{"State", "County"}, []string{"Block"}},
		{"block", domain.ScopeBlock, []string{"State", "County", "Block"}, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(srv.URL, RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond})
			codes, err := c.Resolve(context.Background(), 35.1495, -90.049, tc.scope)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			for _, key := range tc.present {
				if _, ok := codes[key]; !ok {
					t.Fatalf("expected %s in region codes at scope %d: %v", key, tc.scope, codes)
				}
			}
			for _, key := range tc.absent {
				if _, ok := codes[key]; ok {
					t.Fatalf("expected %s trimmed at scope %d: %v", key, tc.scope, codes)
				}
			}
		})
	}
}

func TestResolveExhaustsBoundedBudget(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond})
	_, err := c.Resolve(context.Background(), 40.0, -75.0, domain.ScopeCounty)
	if err == nil {
		t.Fatalf("expected error after exhausting retry budget")
	}
	if got := calls.Load(); got != 5 {
		t.Fatalf("expected exactly 5 attempts, got %d", got)
	}
}

func TestResolveRecoversFromTransientFailures(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(fccBody))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond})
	codes, err := c.Resolve(context.Background(), 40.0, -75.0, domain.ScopeBlock)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected success on third attempt, got %d calls", calls.Load())
	}
	if codes["status"] != "OK" {
		t.Fatalf("unexpected response body: %v", codes)
	}
}

func TestRetryPolicyDelaysDouble(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, Multiplier: 2}
	bo := p.backOff(context.Background())

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, w := range want {
		if got := bo.NextBackOff(); got != w {
			t.Fatalf("delay %d: expected %s, got %s", i, w, got)
		}
	}
	if got := bo.NextBackOff(); got != backoff.Stop {
		t.Fatalf("expected budget exhausted after 4 delays, got %s", got)
	}
}

func TestUnboundedPolicyKeepsRetrying(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Millisecond, Multiplier: 2}
	bo := p.backOff(context.Background())
	for i := 0; i < 20; i++ {
		if bo.NextBackOff() == backoff.Stop {
			t.Fatalf("unbounded policy stopped after %d delays", i)
		}
	}
}
