package covid19

import (
	"io"

	base "github.com/nset-ornl/covid19/pkg/covidpipe"
)

// Re-exported errors for convenience.
var (
	ErrChannelStoreClosed = base.ErrChannelStoreClosed
)

// Type aliases so consumers can import github.com/nset-ornl/covid19 directly.
type (
	Config           = base.Config
	PostgresConfig   = base.PostgresConfig
	ElasticConfig    = base.ElasticConfig
	GeocodeConfig    = base.GeocodeConfig
	PipelineConfig   = base.PipelineConfig
	MetricsConfig    = base.MetricsConfig
	DeadLetterConfig = base.DeadLetterConfig

	Flow            = base.Flow
	FlowOption      = base.FlowOption
	StreamInOption  = base.StreamInOption
	StreamOutOption = base.StreamOutOption
	Runtime         = base.Runtime
	RuntimeOption   = base.RuntimeOption

	Record             = base.Record
	Document           = base.Document
	Action             = base.Action
	OpType             = base.OpType
	Scope              = base.Scope
	RegionCodes        = base.RegionCodes
	TransformConfig    = base.TransformConfig
	TransformEntry     = base.TransformEntry
	DocumentBatchStore = base.DocumentBatchStore
	State              = base.State
	Stats              = base.Stats

	RecordSource    = base.RecordSource
	Geocoder        = base.Geocoder
	DocumentStore   = base.DocumentStore
	ItemResult      = base.ItemResult
	Observability   = base.Observability
	Field           = base.Field
	DeadLetter      = base.DeadLetter
	DeadLetterEntry = base.DeadLetterEntry
	DeadLetterID    = base.DeadLetterID
	DeadLetterStats = base.DeadLetterStats
)

// Op types and scopes.
const (
	OpIndex  = base.OpIndex
	OpCreate = base.OpCreate
	OpUpdate = base.OpUpdate

	ScopeState  = base.ScopeState
	ScopeCounty = base.ScopeCounty
	ScopeBlock  = base.ScopeBlock
)

// Run states.
const (
	StateCreated   = base.StateCreated
	StateStreaming = base.StateStreaming
	StateDraining  = base.StateDraining
	StateComplete  = base.StateComplete
	StateFailed    = base.StateFailed
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInSource(src RecordSource) StreamInOption {
	return base.StreamInSource(src)
}

func StreamInGeocoder(gc Geocoder) StreamInOption {
	return base.StreamInGeocoder(gc)
}

func StreamInTransform(tc TransformConfig) StreamInOption {
	return base.StreamInTransform(tc)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutStore(st DocumentStore) StreamOutOption {
	return base.StreamOutStore(st)
}

func StreamOutDeadLetter(dlq DeadLetter) StreamOutOption {
	return base.StreamOutDeadLetter(dlq)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn DocumentBatchStore) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

func StreamOutProgress(w io.Writer) StreamOutOption {
	return base.StreamOutProgress(w)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithSource(src RecordSource) RuntimeOption {
	return base.WithSource(src)
}

func WithGeocoder(gc Geocoder) RuntimeOption {
	return base.WithGeocoder(gc)
}

func WithStore(st DocumentStore) RuntimeOption {
	return base.WithStore(st)
}

func WithDeadLetter(dlq DeadLetter) RuntimeOption {
	return base.WithDeadLetter(dlq)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithTransform(tc TransformConfig) RuntimeOption {
	return base.WithTransform(tc)
}

func WithProgress(w io.Writer) RuntimeOption {
	return base.WithProgress(w)
}

// Transform helpers.
func CountyTransform() TransformConfig {
	return base.CountyTransform()
}

// Store adapters.
func NewCallbackStore(name string, fn DocumentBatchStore) DocumentStore {
	return base.NewCallbackStore(name, fn)
}

func NewChannelStore(name string, buffer int) (DocumentStore, <-chan []Action, func()) {
	return base.NewChannelStore(name, buffer)
}
