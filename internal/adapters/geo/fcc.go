package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nset-ornl/covid19/internal/domain"
	"github.com/nset-ornl/covid19/internal/ports"
)

// DefaultEndpoint is the FCC census-block lookup template. The latitude and
// longitude placeholders are filled per request.
const DefaultEndpoint = "https://geo.fcc.gov/api/census/block/find?latitude={latitude}&longitude={longitude}&showall=false&format=json"

const defaultTimeout = 10 * time.Second

// RetryPolicy controls how transient lookup failures are retried. Delays
// start at BaseDelay and are multiplied by Multiplier after each attempt.
// MaxAttempts zero removes the attempt bound, matching the unbounded
// decorator variant; a positive value caps the total number of attempts.
type RetryPolicy struct {
	MaxAttempts uint64
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy bounds the lookup at 5 attempts with delays of
// 1s, 2s, 4s, 8s between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, Multiplier: 2}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	if b.InitialInterval <= 0 {
		b.InitialInterval = time.Second
	}
	b.Multiplier = p.Multiplier
	if b.Multiplier <= 1 {
		b.Multiplier = 2
	}
	b.RandomizationFactor = 0
	b.MaxInterval = 5 * time.Minute
	b.MaxElapsedTime = 0

	var bo backoff.BackOff = b
	if p.MaxAttempts > 0 {
		bo = backoff.WithMaxRetries(bo, p.MaxAttempts-1)
	}
	return backoff.WithContext(bo, ctx)
}

// TransientError is a retryable lookup failure: a network error, a
// non-2xx status, or an unparseable body.
type TransientError struct {
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("geocode transient failure: %v", e.Err)
	}
	return fmt.Sprintf("geocode transient failure: status %d", e.Status)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Config configures the lookup client.
type Config struct {
	Endpoint string
	Timeout  time.Duration
	Policy   RetryPolicy
}

// Client resolves coordinates to FCC region codes with retry protection.
type Client struct {
	http     *http.Client
	endpoint string
	policy   RetryPolicy
	obs      ports.Observability
}

// New builds a lookup client. obs may be nil.
func New(cfg Config, obs ports.Observability) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Policy == (RetryPolicy{}) {
		cfg.Policy = DefaultRetryPolicy()
	}
	return &Client{
		http:     &http.Client{Timeout: cfg.Timeout},
		endpoint: cfg.Endpoint,
		policy:   cfg.Policy,
		obs:      obs,
	}
}

// Resolve looks up the region-code block for the coordinates and trims it to
// the requested scope. Transient failures are retried per the client policy;
// a bounded policy surfaces the last transient error once the budget is
// exhausted. The failure is fatal only for this record's enrichment, the
// caller decides whether to propagate it.
func (c *Client) Resolve(ctx context.Context, lat, lon float64, scope domain.Scope) (domain.RegionCodes, error) {
	url := c.url(lat, lon)

	var codes domain.RegionCodes
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return &TransientError{Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return &TransientError{Status: resp.StatusCode}
		}

		var raw map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			return &TransientError{Err: err}
		}
		codes = domain.RegionCodes(raw).Trim(scope)
		return nil
	}

	notify := func(err error, next time.Duration) {
		if c.obs == nil {
			return
		}
		c.obs.IncCounter("covid_geocode_retries_total", 1)
		c.obs.LogInfo("geocode_retry",
			ports.Field{Key: "error", Value: err.Error()},
			ports.Field{Key: "next_delay", Value: next.String()})
	}

	if err := backoff.RetryNotify(attempt, c.policy.backOff(ctx), notify); err != nil {
		return nil, fmt.Errorf("geocode (%s, %s): %w", formatCoord(lat), formatCoord(lon), err)
	}
	return codes, nil
}

func (c *Client) url(lat, lon float64) string {
	u := strings.ReplaceAll(c.endpoint, "{latitude}", formatCoord(lat))
	return strings.ReplaceAll(u, "{longitude}", formatCoord(lon))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var _ ports.Geocoder = (*Client)(nil)
