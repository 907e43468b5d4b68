package covidpipe

import (
	"github.com/nset-ornl/covid19/internal/app/config"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// PostgresConfig describes the relational source connection.
	PostgresConfig = config.PostgresConfig
	// ElasticConfig configures the document store.
	ElasticConfig = config.ElasticConfig
	// GeocodeConfig configures enrichment and its retry budget.
	GeocodeConfig = config.GeocodeConfig
	// PipelineConfig holds chunking, limit, and date-range settings.
	PipelineConfig = config.PipelineConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// DeadLetterConfig configures the on-disk dead-letter log.
	DeadLetterConfig = config.DeadLetterConfig
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}
