package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync/atomic"
	"time"

	"github.com/nset-ornl/covid19/internal/domain"
	"github.com/nset-ornl/covid19/internal/ports"
)

// State is the lifecycle phase of a pipeline run.
type State int32

const (
	StateCreated State = iota
	StateStreaming
	StateDraining
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Enrichment failure policies.
const (
	OnEnrichPropagate  = "propagate"
	OnEnrichDeadLetter = "dead_letter"
)

// Params wires a pipeline. Source, Mapper, Builder and Store are required;
// everything else has a working zero value.
type Params struct {
	Source  ports.RecordSource
	Mapper  *FieldMapper
	Hasher  *IdentityHasher
	Builder *ActionBuilder
	Store   ports.DocumentStore

	ChunkSize int
	OnEnrich  string

	Obs ports.Observability
	DLQ ports.DeadLetter
}

// Pipeline pulls records from the source, maps and identifies them, and
// drains the resulting actions into the store. Records move one at a time
// through a single lazy chain; nothing is buffered beyond the sink batch.
type Pipeline struct {
	source   ports.RecordSource
	mapper   *FieldMapper
	hasher   *IdentityHasher
	builder  *ActionBuilder
	sink     *BulkSink
	obs      ports.Observability
	dlq      ports.DeadLetter
	onEnrich string

	stats *Stats
	state atomic.Int32
}

func New(p Params) (*Pipeline, error) {
	if p.Source == nil {
		return nil, errors.New("pipeline: record source is required")
	}
	if p.Mapper == nil {
		return nil, errors.New("pipeline: field mapper is required")
	}
	if p.Builder == nil {
		return nil, errors.New("pipeline: action builder is required")
	}
	if p.Store == nil {
		return nil, errors.New("pipeline: document store is required")
	}
	if p.Hasher == nil {
		p.Hasher = NewIdentityHasher(DefaultIdentity())
	}
	switch p.OnEnrich {
	case "":
		p.OnEnrich = OnEnrichDeadLetter
	case OnEnrichPropagate, OnEnrichDeadLetter:
	default:
		return nil, fmt.Errorf("pipeline: unknown enrich policy %q", p.OnEnrich)
	}
	stats := &Stats{}
	pl := &Pipeline{
		source:   p.Source,
		mapper:   p.Mapper,
		hasher:   p.Hasher,
		builder:  p.Builder,
		sink:     NewBulkSink(p.Store, p.ChunkSize, stats, p.Obs, p.DLQ),
		obs:      p.Obs,
		dlq:      p.DLQ,
		onEnrich: p.OnEnrich,
		stats:    stats,
	}
	pl.sink.drained = func() { pl.setState(StateDraining) }
	return pl, nil
}

func (p *Pipeline) State() State { return State(p.state.Load()) }

func (p *Pipeline) Stats() *Stats { return p.stats }

// AutoFlow runs the transfer to completion without progress output.
func (p *Pipeline) AutoFlow(ctx context.Context) error {
	p.sink.SetProgress(nil)
	return p.run(ctx)
}

// YieldFlow runs the transfer, writing a progress line to w after every
// batch that advanced the transfer count.
func (p *Pipeline) YieldFlow(ctx context.Context, w io.Writer) error {
	p.sink.SetProgress(w)
	return p.run(ctx)
}

func (p *Pipeline) run(ctx context.Context) error {
	p.setState(StateStreaming)
	start := time.Now()
	if err := p.sink.Drain(ctx, p.actions(ctx)); err != nil {
		p.setState(StateFailed)
		if p.obs != nil {
			p.obs.LogError("pipeline run failed", err,
				ports.Field{Key: "transferred", Value: p.stats.Transferred()})
		}
		return err
	}
	p.setState(StateComplete)
	if p.obs != nil {
		p.obs.LogInfo("pipeline run complete",
			ports.Field{Key: "transferred", Value: p.stats.Transferred()},
			ports.Field{Key: "written", Value: p.stats.Written()},
			ports.Field{Key: "dead_lettered", Value: p.stats.DeadLettered()},
			ports.Field{Key: "elapsed", Value: time.Since(start).String()})
	}
	return nil
}

// actions is the lazy record-to-action chain. Each pull fetches at most one
// record from the source, so the source cursor advances in lockstep with
// the sink.
func (p *Pipeline) actions(ctx context.Context) iter.Seq2[domain.Action, error] {
	return func(yield func(domain.Action, error) bool) {
		for rec, err := range p.source.Stream(ctx) {
			if err != nil {
				yield(domain.Action{}, err)
				return
			}
			p.stats.incTransferred(1)
			if p.obs != nil {
				p.obs.IncCounter("covid_records_transferred_total", 1)
			}
			doc, err := p.mapper.Map(ctx, rec)
			if err != nil {
				var enrich *EnrichError
				if errors.As(err, &enrich) && p.onEnrich == OnEnrichDeadLetter {
					p.divertEnrich(rec, err)
					continue
				}
				yield(domain.Action{}, err)
				return
			}
			if !yield(p.builder.Build(p.hasher.Identify(rec), doc), nil) {
				return
			}
		}
	}
}

func (p *Pipeline) divertEnrich(rec domain.Record, cause error) {
	p.stats.incDeadLettered(1)
	docID := p.hasher.Identify(rec)
	if p.dlq == nil {
		if p.obs != nil {
			p.obs.LogError("record enrichment failed", cause, ports.Field{Key: "doc_id", Value: docID})
		}
		return
	}
	entry := ports.DeadLetterEntry{
		Stage:  "enrich",
		DocID:  docID,
		Reason: cause.Error(),
		Doc:    domain.Document(rec),
		At:     time.Now().UTC(),
	}
	id, err := p.dlq.Append(entry)
	if err != nil {
		if p.obs != nil {
			p.obs.LogError("dead letter append failed", err, ports.Field{Key: "doc_id", Value: docID})
		}
		return
	}
	if p.obs != nil {
		p.obs.RecordDeadLetter(id, docID, cause)
	}
}

func (p *Pipeline) setState(s State) {
	p.state.Store(int32(s))
	if p.obs != nil {
		p.obs.SetGauge("covid_pipeline_state", float64(s))
	}
}
