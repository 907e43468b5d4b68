package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nset-ornl/covid19/internal/domain"
)

type Config struct {
	Postgres   PostgresConfig   `yaml:"postgres"`
	Elastic    ElasticConfig    `yaml:"elastic"`
	Geocode    GeocodeConfig    `yaml:"geocode"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	DeadLetter DeadLetterConfig `yaml:"dead_letter"`
}

type PostgresConfig struct {
	Driver     string `yaml:"driver"` // "postgres" (lib/pq) or "pgx"
	ConnString string `yaml:"conn_string"`
	Query      string `yaml:"query"`
	CursorName string `yaml:"cursor_name"`
}

type ElasticConfig struct {
	Addresses []string `yaml:"addresses"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	Index     string   `yaml:"index"`
	OpType    string   `yaml:"op_type"`
}

type GeocodeConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	Scope       string        `yaml:"scope"`        // "state", "county" or "block"
	MaxAttempts int64         `yaml:"max_attempts"` // -1 removes the attempt bound
	BaseDelay   time.Duration `yaml:"base_delay"`
	Timeout     time.Duration `yaml:"timeout"`
	OnExhausted string        `yaml:"on_exhausted"` // "propagate" or "dead_letter"
}

// AttemptBudget maps the configured attempt count to a retry budget:
// a positive value bounds the lookup, -1 retries without bound.
func (g GeocodeConfig) AttemptBudget() uint64 {
	if g.MaxAttempts < 0 {
		return 0
	}
	return uint64(g.MaxAttempts)
}

// ScopeValue maps the configured scope name to its domain value.
func (g GeocodeConfig) ScopeValue() domain.Scope {
	switch g.Scope {
	case "state":
		return domain.ScopeState
	case "block":
		return domain.ScopeBlock
	}
	return domain.ScopeCounty
}

type PipelineConfig struct {
	ChunkSize int    `yaml:"chunk_size"`
	Limit     int64  `yaml:"limit"` // 0 streams until the query exhausts
	From      string `yaml:"from"`
	To        string `yaml:"to"`
	Provider  string `yaml:"provider"`
	Progress  bool   `yaml:"progress"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type DeadLetterConfig struct {
	Dir string `yaml:"dir"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Postgres.Query == "" {
		c.Postgres.Query = "select * from public.get_ps_data({from_to})"
	}
	if c.Postgres.CursorName == "" {
		c.Postgres.CursorName = "covid_pipe_cur"
	}
	if c.Elastic.Index == "" {
		c.Elastic.Index = "covid19-custom-ornl"
	}
	if c.Elastic.OpType == "" {
		c.Elastic.OpType = string(domain.OpIndex)
	}
	if c.Geocode.Scope == "" {
		c.Geocode.Scope = "county"
	}
	if c.Geocode.MaxAttempts == 0 {
		c.Geocode.MaxAttempts = 5
	}
	if c.Geocode.BaseDelay == 0 {
		c.Geocode.BaseDelay = time.Second
	}
	if c.Geocode.OnExhausted == "" {
		c.Geocode.OnExhausted = "dead_letter"
	}
	if c.Pipeline.ChunkSize == 0 {
		c.Pipeline.ChunkSize = 500
	}
	if c.Pipeline.Provider == "" {
		c.Pipeline.Provider = "state"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.DeadLetter.Dir == "" {
		c.DeadLetter.Dir = "./data/dead_letter"
	}
}

func (c *Config) Validate() error {
	if c.Postgres.ConnString == "" {
		return fmt.Errorf("postgres.conn_string is required")
	}
	switch c.Postgres.Driver {
	case "", "postgres", "pgx":
	default:
		return fmt.Errorf("postgres.driver must be postgres or pgx, got %q", c.Postgres.Driver)
	}
	if len(c.Elastic.Addresses) == 0 {
		return fmt.Errorf("elastic.addresses is required")
	}
	if err := domain.OpType(c.Elastic.OpType).Validate(); err != nil {
		return fmt.Errorf("elastic.op_type: %w", err)
	}
	switch c.Geocode.Scope {
	case "state", "county", "block":
	default:
		return fmt.Errorf("geocode.scope must be state, county or block, got %q", c.Geocode.Scope)
	}
	if c.Geocode.MaxAttempts < -1 {
		return fmt.Errorf("geocode.max_attempts must be positive or -1 for unbounded, got %d", c.Geocode.MaxAttempts)
	}
	switch c.Geocode.OnExhausted {
	case "propagate", "dead_letter":
	default:
		return fmt.Errorf("geocode.on_exhausted must be propagate or dead_letter, got %q", c.Geocode.OnExhausted)
	}
	for _, bound := range []struct{ name, v string }{
		{"pipeline.from", c.Pipeline.From},
		{"pipeline.to", c.Pipeline.To},
	} {
		if bound.v == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", bound.v); err != nil {
			return fmt.Errorf("%s: expected YYYY-MM-DD, got %q", bound.name, bound.v)
		}
	}
	return nil
}
