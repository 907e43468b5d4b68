package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/nset-ornl/covid19/internal/domain"
)

// IdentityConfig names the record fields folded into the identifier.
// Region takes precedence over the coordinate pair; Batch takes precedence
// over the access-time bucket. Missing fields contribute the empty string.
type IdentityConfig struct {
	Region     string
	Lat        string
	Lon        string
	Group      string
	Batch      string
	AccessTime string
}

// DefaultIdentity covers county-scoped source rows.
func DefaultIdentity() IdentityConfig {
	return IdentityConfig{
		Region:     "county_name",
		Lat:        "county_lat",
		Lon:        "county_lon",
		Group:      "state",
		Batch:      "scrape_group",
		AccessTime: "access_time",
	}
}

// IdentityHasher derives a stable document identifier from a record. Two
// records agreeing on the configured fields always hash to the same
// identifier, regardless of every other field.
type IdentityHasher struct {
	cfg IdentityConfig
}

func NewIdentityHasher(cfg IdentityConfig) *IdentityHasher {
	return &IdentityHasher{cfg: cfg}
}

// Identify returns the hex digest identifying rec.
func (h *IdentityHasher) Identify(rec domain.Record) string {
	head := identityString(rec[h.cfg.Region])
	if head == "" {
		head = identityString(rec[h.cfg.Lat]) + identityString(rec[h.cfg.Lon])
	}
	body := identityString(rec[h.cfg.Group])
	tail := identityString(rec[h.cfg.Batch])
	if tail == "" {
		tail = timeBucket(rec[h.cfg.AccessTime])
	}
	sum := sha256.Sum256([]byte(head + body + tail))
	return hex.EncodeToString(sum[:])
}

func timeBucket(v any) string {
	if v == nil {
		return ""
	}
	t, err := parseTime(v)
	if err != nil {
		return ""
	}
	return t.Format("2006010215")
}

func identityString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(s, 10)
	case int:
		return strconv.Itoa(s)
	case time.Time:
		return s.Format(time.RFC3339)
	}
	return toString(v)
}
