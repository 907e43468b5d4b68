package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nset-ornl/covid19/internal/domain"
	"github.com/nset-ornl/covid19/internal/ports"
)

// CastKind is the type conversion applied to a source column.
type CastKind string

const (
	CastInt       CastKind = "int"
	CastFloat     CastKind = "float"
	CastString    CastKind = "string"
	CastTime      CastKind = "time"      // parses to Unix epoch seconds
	CastTimeGroup CastKind = "timegroup" // buckets to a YYYYMMDDHH label
)

// TransformEntry maps one source column onto a target field through a cast.
type TransformEntry struct {
	Source string
	Cast   CastKind
}

// TransformConfig maps target field names to their extraction rules.
// Iteration order never affects the produced document.
type TransformConfig map[string]TransformEntry

// CountyTransform is the transform table for county-scoped records.
func CountyTransform() TransformConfig {
	return TransformConfig{
		"access_time":         {Source: "access_time", Cast: CastTime},
		"cases":               {Source: "cases", Cast: CastInt},
		"cases_female":        {Source: "sex_female_cases", Cast: CastFloat},
		"cases_male":          {Source: "sex_male_cases", Cast: CastFloat},
		"country":             {Source: "country", Cast: CastString},
		"county":              {Source: "county_name", Cast: CastString},
		"deaths":              {Source: "deaths", Cast: CastInt},
		"hospitalized":        {Source: "hospitalized", Cast: CastInt},
		"inconclusive":        {Source: "inconclusive", Cast: CastInt},
		"lat":                 {Source: "county_lat", Cast: CastFloat},
		"lon":                 {Source: "county_lon", Cast: CastFloat},
		"monitored":           {Source: "monitored", Cast: CastInt},
		"negative":            {Source: "negative", Cast: CastInt},
		"no_longer_monitored": {Source: "no_longer_monitored", Cast: CastInt},
		"pending":             {Source: "pending", Cast: CastFloat},
		"recovered":           {Source: "recovered", Cast: CastInt},
		"scrape_group":        {Source: "access_time", Cast: CastTimeGroup},
		"state":               {Source: "state", Cast: CastString},
		"tested":              {Source: "tested", Cast: CastInt},
		"updated":             {Source: "updated", Cast: CastTime},
	}
}

// EnrichError marks a geocode enrichment failure for a single record. It is
// fatal for that record only; the pipeline decides whether to propagate it
// or divert the record to the dead-letter log.
type EnrichError struct {
	Lat float64
	Lon float64
	Err error
}

func (e *EnrichError) Error() string {
	return fmt.Sprintf("enrich (%v, %v): %v", e.Lat, e.Lon, e.Err)
}

func (e *EnrichError) Unwrap() error { return e.Err }

// MapperConfig configures the field mapper. LatField and LonField name the
// target document fields checked for coordinates after the transform table
// has been applied.
type MapperConfig struct {
	Transform TransformConfig
	Scope     domain.Scope
	Provider  string
	LatField  string
	LonField  string
}

// FieldMapper converts records into documents: it applies the transform
// table, attaches geometry and region codes when coordinates are present,
// and stamps provenance fields.
type FieldMapper struct {
	cfg MapperConfig
	geo ports.Geocoder
	now func() time.Time
}

// NewFieldMapper builds a mapper. geo may be nil, which disables enrichment.
func NewFieldMapper(cfg MapperConfig, geo ports.Geocoder) *FieldMapper {
	if cfg.Transform == nil {
		cfg.Transform = CountyTransform()
	}
	if cfg.Provider == "" {
		cfg.Provider = "state"
	}
	if cfg.LatField == "" {
		cfg.LatField = "lat"
	}
	if cfg.LonField == "" {
		cfg.LonField = "lon"
	}
	return &FieldMapper{cfg: cfg, geo: geo, now: time.Now}
}

// Map produces the target document for one record. A source column missing
// from the record yields a nil target field, never an error; a present but
// uncastable value is an error. The geometry and region-code keys are added
// iff both coordinates are present and non-nil, otherwise they are absent.
func (m *FieldMapper) Map(ctx context.Context, rec domain.Record) (domain.Document, error) {
	doc := make(domain.Document, len(m.cfg.Transform)+4)
	for target, entry := range m.cfg.Transform {
		raw, ok := rec[entry.Source]
		if !ok || raw == nil {
			doc[target] = nil
			continue
		}
		v, err := castValue(entry.Cast, raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", target, err)
		}
		doc[target] = v
	}

	lat, latOK := toCoord(doc[m.cfg.LatField])
	lon, lonOK := toCoord(doc[m.cfg.LonField])
	if latOK && lonOK && m.geo != nil {
		codes, err := m.geo.Resolve(ctx, lat, lon, m.cfg.Scope)
		if err != nil {
			return nil, &EnrichError{Lat: lat, Lon: lon, Err: err}
		}
		doc["fips"] = codes
		doc["geometry"] = domain.Geometry(lat, lon)
	}

	doc["provider"] = m.cfg.Provider
	doc["createdAt"] = m.now().UTC().Format(time.RFC3339)
	return doc, nil
}

// timeLayouts are tried in order when parsing source timestamps. The month
// name layout covers scraped sites that publish "April 1, 2020" style dates.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
	"January 2, 2006",
}

func parseTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable timestamp %q", t)
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp value %v (%T)", v, v)
}

func castValue(kind CastKind, v any) (any, error) {
	switch kind {
	case CastInt:
		return toInt64(v)
	case CastFloat:
		return toFloat64(v)
	case CastString:
		return toString(v), nil
	case CastTime:
		t, err := parseTime(v)
		if err != nil {
			return nil, err
		}
		return t.Unix(), nil
	case CastTimeGroup:
		t, err := parseTime(v)
		if err != nil {
			return nil, err
		}
		return t.Format("2006010215"), nil
	}
	return nil, fmt.Errorf("unknown cast kind %q", kind)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case float32:
		return int64(n), nil
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case string:
		return strconv.ParseInt(n, 10, 64)
	}
	return 0, fmt.Errorf("cannot cast %v (%T) to int", v, v)
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case []byte:
		return strconv.ParseFloat(string(n), 64)
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return 0, fmt.Errorf("cannot cast %v (%T) to float", v, v)
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case time.Time:
		return s.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}

func toCoord(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
