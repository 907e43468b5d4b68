package observability

import (
	"go.uber.org/zap"

	"github.com/nset-ornl/covid19/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// PromObs backs the Observability port with Prometheus metrics and a zap
// sugared logger.
type PromObs struct {
	log      *zap.SugaredLogger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

func NewPromObs(log *zap.SugaredLogger) *PromObs {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	transferred := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "covid_records_transferred_total",
		Help: "Total records pulled from the relational source.",
	})
	written := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "covid_documents_written_total",
		Help: "Total documents acknowledged by the document store.",
	})
	geoRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "covid_geocode_retries_total",
		Help: "Geocode lookup attempts retried after a transient failure.",
	})
	deadLetters := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "covid_dead_letter_total",
		Help: "Records diverted to the dead-letter log.",
	})
	stateGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "covid_pipeline_state",
		Help: "Current pipeline state (0=created 1=streaming 2=draining 3=complete 4=failed).",
	})
	flushLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "covid_bulk_flush_latency_seconds",
		Help:    "Latency of one bulk batch submission to the document store.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	prometheus.MustRegister(transferred, written, geoRetries, deadLetters, stateGauge, flushLatency)

	return &PromObs{
		log: log,
		counters: map[string]prometheus.Counter{
			"covid_records_transferred_total": transferred,
			"covid_documents_written_total":   written,
			"covid_geocode_retries_total":     geoRetries,
			"covid_dead_letter_total":         deadLetters,
		},
		gauges: map[string]prometheus.Gauge{
			"covid_pipeline_state": stateGauge,
		},
		histos: map[string]prometheus.Observer{
			"covid_bulk_flush_latency_seconds": flushLatency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.Infow(msg, flatten(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	if err != nil {
		p.log.Errorw(msg, append(flatten(fields), "error", err)...)
	}
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	if err != nil {
		p.log.Errorw(msg, append(flatten(fields), "error", err, "critical", true)...)
	}
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) RecordDeadLetter(id ports.DeadLetterID, docID string, err error) {
	p.IncCounter("covid_dead_letter_total", 1)
	if err != nil {
		p.log.Errorw("dead_letter", "entry_id", id, "doc_id", docID, "error", err)
	}
}

func flatten(fields []ports.Field) []any {
	out := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f.Key, f.Value)
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
