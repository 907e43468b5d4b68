package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

func TestPromObsMetrics(t *testing.T) {
	origReg := prometheus.DefaultRegisterer
	origGatherer := prometheus.DefaultGatherer
	t.Cleanup(func() {
		prometheus.DefaultRegisterer = origReg
		prometheus.DefaultGatherer = origGatherer
	})

	reg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = reg
	prometheus.DefaultGatherer = reg

	obs := NewPromObs(zap.NewNop().Sugar())

	obs.IncCounter("covid_records_transferred_total", 7)
	if got := testutil.ToFloat64(obs.counters["covid_records_transferred_total"]); got != 7 {
		t.Fatalf("expected transferred counter 7, got %f", got)
	}

	obs.IncCounter("covid_geocode_retries_total", 3)
	if got := testutil.ToFloat64(obs.counters["covid_geocode_retries_total"]); got != 3 {
		t.Fatalf("expected retry counter 3, got %f", got)
	}

	obs.SetGauge("covid_pipeline_state", 2)
	if got := testutil.ToFloat64(obs.gauges["covid_pipeline_state"]); got != 2 {
		t.Fatalf("expected state gauge 2, got %f", got)
	}

	obs.ObserveLatency("covid_bulk_flush_latency_seconds", 0.25)
	hCollector := obs.histos["covid_bulk_flush_latency_seconds"].(prometheus.Collector)
	if samples := testutil.CollectAndCount(hCollector); samples != 1 {
		t.Fatalf("expected latency histogram to record 1 sample, got %d", samples)
	}

	obs.RecordDeadLetter(1, "abc", nil)
	if got := testutil.ToFloat64(obs.counters["covid_dead_letter_total"]); got != 1 {
		t.Fatalf("expected dead-letter counter 1, got %f", got)
	}
}

func TestPromObsUnknownNamesAreIgnored(t *testing.T) {
	origReg := prometheus.DefaultRegisterer
	origGatherer := prometheus.DefaultGatherer
	t.Cleanup(func() {
		prometheus.DefaultRegisterer = origReg
		prometheus.DefaultGatherer = origGatherer
	})

	reg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = reg
	prometheus.DefaultGatherer = reg

	obs := NewPromObs(nil)
	obs.IncCounter("no_such_counter", 1)
	obs.SetGauge("no_such_gauge", 1)
	obs.ObserveLatency("no_such_histogram", 1)
}
