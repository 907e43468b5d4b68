package covidpipe

import (
	"github.com/nset-ornl/covid19/internal/app/pipeline"
	"github.com/nset-ornl/covid19/internal/domain"
	"github.com/nset-ornl/covid19/internal/ports"
)

// Record is one raw row pulled from the relational source.
type Record = domain.Record

// Document is the transformed, enrichment-augmented shape written to the store.
type Document = domain.Document

// Action pairs a document with its op type, target index and identifier.
type Action = domain.Action

// OpType is the bulk operation applied per document.
type OpType = domain.OpType

// Supported op types.
const (
	OpIndex  = domain.OpIndex
	OpCreate = domain.OpCreate
	OpUpdate = domain.OpUpdate
)

// Scope bounds how much of the region-code hierarchy enrichment keeps.
type Scope = domain.Scope

const (
	ScopeState  = domain.ScopeState
	ScopeCounty = domain.ScopeCounty
	ScopeBlock  = domain.ScopeBlock
)

// RegionCodes is the trimmed geolocation payload attached to documents.
type RegionCodes = domain.RegionCodes

// RecordSource streams raw records into the pipeline.
type RecordSource = ports.RecordSource

// Geocoder resolves coordinates to region codes.
type Geocoder = ports.Geocoder

// DocumentStore consumes batches of actions and persists them downstream.
type DocumentStore = ports.DocumentStore

// ItemResult is the store's per-action acknowledgment.
type ItemResult = ports.ItemResult

// Observability emits metrics/logs about throughput, retries, and
// dead-letter conditions.
type Observability = ports.Observability

// Field is a structured log/metric field used by Observability implementations.
type Field = ports.Field

// DeadLetter is the append-only log of undeliverable records.
type DeadLetter = ports.DeadLetter

// DeadLetterEntry records one undeliverable record or action.
type DeadLetterEntry = ports.DeadLetterEntry

// DeadLetterID uniquely identifies a dead-letter entry.
type DeadLetterID = ports.DeadLetterID

// DeadLetterStats exposes dead-letter log metadata.
type DeadLetterStats = ports.DeadLetterStats

// State is the lifecycle phase of a pipeline run.
type State = pipeline.State

const (
	StateCreated   = pipeline.StateCreated
	StateStreaming = pipeline.StateStreaming
	StateDraining  = pipeline.StateDraining
	StateComplete  = pipeline.StateComplete
	StateFailed    = pipeline.StateFailed
)

// Stats tracks transfer counters for a run.
type Stats = pipeline.Stats

// TransformConfig maps target field names to their extraction rules.
type TransformConfig = pipeline.TransformConfig

// TransformEntry maps one source column onto a target field through a cast.
type TransformEntry = pipeline.TransformEntry

// CountyTransform is the default transform table for county-scoped records.
func CountyTransform() TransformConfig { return pipeline.CountyTransform() }
