package covidpipe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nset-ornl/covid19/internal/adapters/deadletter"
	"github.com/nset-ornl/covid19/internal/adapters/geo"
	"github.com/nset-ornl/covid19/internal/adapters/observability"
	"github.com/nset-ornl/covid19/internal/adapters/source"
	"github.com/nset-ornl/covid19/internal/adapters/store"
	"github.com/nset-ornl/covid19/internal/app/pipeline"
	"github.com/nset-ornl/covid19/internal/domain"
	"github.com/nset-ornl/covid19/internal/ports"
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	source        RecordSource
	geocoder      Geocoder
	store         DocumentStore
	deadLetter    DeadLetter
	observability Observability
	transform     TransformConfig
	progress      io.Writer
	logger        *zap.SugaredLogger
}

// WithSource injects a custom record source (another database, a CSV reader,
// a fixture generator).
func WithSource(src RecordSource) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.source = src
	}
}

// WithGeocoder injects a custom geolocation backend.
func WithGeocoder(gc Geocoder) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.geocoder = gc
	}
}

// WithStore injects a custom document store so records can be sent to any
// database or API.
func WithStore(st DocumentStore) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.store = st
	}
}

// WithDeadLetter lets callers bring their own dead-letter log implementation.
func WithDeadLetter(dlq DeadLetter) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.deadLetter = dlq
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithTransform overrides the default county transform table.
func WithTransform(tc TransformConfig) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.transform = tc
	}
}

// WithProgress directs progress lines to w regardless of the configured
// progress flag.
func WithProgress(w io.Writer) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.progress = w
	}
}

// WithLogger sets the logger used by the default observability backend.
func WithLogger(log *zap.SugaredLogger) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.logger = log
	}
}

// Runtime wires the source → mapper → enrichment → store chain and exposes
// simple lifecycle hooks for embedding the transfer inside any Go service.
type Runtime struct {
	cfg        *Config
	pipe       *pipeline.Pipeline
	obs        ports.Observability
	db         *sql.DB
	dlq        ports.DeadLetter
	ownedDLQ   io.Closer
	feed       *progressFeed
	metricsSrv *http.Server
}

// NewRuntime bootstraps the default adapters (Postgres cursor source, FCC
// geocoder, Elasticsearch store, file dead-letter log, Prometheus
// observability). Callers can use RuntimeOption values to override any
// dependency.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	obs := overrides.observability
	if obs == nil {
		log := overrides.logger
		if log == nil {
			base, err := zap.NewProduction()
			if err != nil {
				return nil, err
			}
			log = base.Sugar()
		}
		obs = observability.NewPromObs(log)
	}

	var db *sql.DB
	src := overrides.source
	if src == nil {
		srcCfg := source.Config{
			Driver:     cfg.Postgres.Driver,
			ConnString: cfg.Postgres.ConnString,
			Query:      cfg.Postgres.Query,
			CursorName: cfg.Postgres.CursorName,
			From:       cfg.Pipeline.From,
			To:         cfg.Pipeline.To,
			ChunkSize:  cfg.Pipeline.ChunkSize,
			Limit:      cfg.Pipeline.Limit,
		}
		var err error
		db, err = source.Open(srcCfg)
		if err != nil {
			return nil, err
		}
		src = source.NewReader(db, srcCfg)
	}

	gc := overrides.geocoder
	if gc == nil {
		gc = geo.New(geo.Config{
			Endpoint: cfg.Geocode.Endpoint,
			Timeout:  cfg.Geocode.Timeout,
			Policy: geo.RetryPolicy{
				MaxAttempts: cfg.Geocode.AttemptBudget(),
				BaseDelay:   cfg.Geocode.BaseDelay,
				Multiplier:  2,
			},
		}, obs)
	}

	st := overrides.store
	if st == nil {
		var err error
		st, err = store.NewElastic(store.Config{
			Addresses: cfg.Elastic.Addresses,
			Username:  cfg.Elastic.Username,
			Password:  cfg.Elastic.Password,
			Index:     cfg.Elastic.Index,
		})
		if err != nil {
			closeDB(db)
			return nil, err
		}
	}

	dlq := overrides.deadLetter
	var ownedDLQ io.Closer
	if dlq == nil {
		fileLog, err := deadletter.NewFileLog(cfg.DeadLetter.Dir)
		if err != nil {
			closeDB(db)
			return nil, err
		}
		dlq = fileLog
		ownedDLQ = fileLog
	}

	mapper := pipeline.NewFieldMapper(pipeline.MapperConfig{
		Transform: overrides.transform,
		Scope:     cfg.Geocode.ScopeValue(),
		Provider:  cfg.Pipeline.Provider,
	}, gc)

	builder, err := pipeline.NewActionBuilder(domain.OpType(cfg.Elastic.OpType), cfg.Elastic.Index)
	if err != nil {
		closeDB(db)
		return nil, err
	}

	pipe, err := pipeline.New(pipeline.Params{
		Source:    src,
		Mapper:    mapper,
		Builder:   builder,
		Store:     st,
		ChunkSize: cfg.Pipeline.ChunkSize,
		OnEnrich:  cfg.Geocode.OnExhausted,
		Obs:       obs,
		DLQ:       dlq,
	})
	if err != nil {
		closeDB(db)
		return nil, err
	}

	progress := overrides.progress
	if progress == nil && cfg.Pipeline.Progress {
		progress = os.Stdout
	}

	return &Runtime{
		cfg:      cfg,
		pipe:     pipe,
		obs:      obs,
		db:       db,
		dlq:      dlq,
		ownedDLQ: ownedDLQ,
		feed:     newProgressFeed(progress),
	}, nil
}

// Stats exposes run counters; safe to read while the transfer is in flight.
func (r *Runtime) Stats() *Stats { return r.pipe.Stats() }

// State reports the lifecycle phase of the transfer.
func (r *Runtime) State() State { return r.pipe.State() }

// DeadLetter returns the dead-letter log used by the runtime.
func (r *Runtime) DeadLetter() DeadLetter { return r.dlq }

// Run starts the metrics server, drives the transfer to completion, and
// shuts everything down. The returned error is the transfer error when one
// occurred, otherwise the shutdown error.
func (r *Runtime) Run(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}

	g, gctx := errgroup.WithContext(ctx)

	if srv := r.buildMetricsServer(); srv != nil {
		r.metricsSrv = srv
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer r.stopMetrics()
		defer r.feed.close()
		return r.pipe.YieldFlow(gctx, r.feed)
	})

	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func (r *Runtime) stopMetrics() {
	if r.metricsSrv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = r.metricsSrv.Shutdown(ctx)
}

// Shutdown stops the metrics server and closes the database handle and the
// runtime-owned dead-letter log.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error

	if r.metricsSrv != nil {
		if err := r.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if r.ownedDLQ != nil {
		if err := r.ownedDLQ.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (r *Runtime) buildMetricsServer() *http.Server {
	if r.cfg.Metrics.Addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/progress", r.progressHandler())

	return &http.Server{
		Addr:    r.cfg.Metrics.Addr,
		Handler: mux,
	}
}

// progressHandler streams progress lines over a chunked response, flushing
// after every line. The response opens with the current count so late
// subscribers see where the transfer stands, then follows the live feed
// until the transfer drains or the client goes away.
func (r *Runtime) progressHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		lines, cancel := r.feed.subscribe()
		defer cancel()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "Documents transferred: %d\n", r.pipe.Stats().Transferred())
		flusher.Flush()

		for {
			select {
			case <-req.Context().Done():
				return
			case line, open := <-lines:
				if !open {
					return
				}
				_, _ = io.WriteString(w, line)
				flusher.Flush()
			}
		}
	}
}

func closeDB(db *sql.DB) {
	if db != nil {
		_ = db.Close()
	}
}
