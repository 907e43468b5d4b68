package covidpipe

import (
	"context"
	"fmt"
	"io"
)

// Flow is a convenience builder that lets callers say Conf → StreamIN →
// StreamOUT without touching the underlying hexagonal wiring.
type Flow struct {
	cfg  *Config
	opts []RuntimeOption
}

// FlowOption mutates the Flow after configuration is loaded.
type FlowOption func(*Flow)

// StreamInOption configures the source/enrichment side of the pipeline.
type StreamInOption func(*Flow)

// StreamOutOption configures the store/dead-letter/observability side of the
// pipeline.
type StreamOutOption func(*Flow)

// Conf loads YAML from disk, applies FlowOption values, and returns a Flow
// builder.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig bootstraps a Flow from an in-memory Config.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// Config returns the underlying configuration so callers can tweak it before
// building a runtime.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options appends raw RuntimeOption values to the builder for advanced
// scenarios.
func (f *Flow) Options(opts ...RuntimeOption) *Flow {
	if f == nil {
		return nil
	}
	f.appendOptions(opts...)
	return f
}

// StreamIN records source-side overrides (source, geocoder, observability).
func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f == nil {
		return nil
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// StreamOUT records store-side overrides and builds a Runtime ready to run.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Runtime, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return NewRuntime(f.cfg, f.opts...)
}

// Run is a shortcut for StreamOUT + runtime.Run.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	rt, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// WithFlowOptions appends RuntimeOption values during Conf.
func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(opts...)
		}
	}
}

// StreamInSource injects a custom record source (fixtures, CSV, another
// database).
func StreamInSource(src RecordSource) StreamInOption {
	return func(f *Flow) {
		if f != nil && src != nil {
			f.appendOptions(WithSource(src))
		}
	}
}

// StreamInGeocoder swaps the FCC client for a caller-provided geocoder.
func StreamInGeocoder(gc Geocoder) StreamInOption {
	return func(f *Flow) {
		if f != nil && gc != nil {
			f.appendOptions(WithGeocoder(gc))
		}
	}
}

// StreamInTransform overrides the default county transform table.
func StreamInTransform(tc TransformConfig) StreamInOption {
	return func(f *Flow) {
		if f != nil && tc != nil {
			f.appendOptions(WithTransform(tc))
		}
	}
}

// StreamInObservability overrides the default Prometheus-based observability
// stack.
func StreamInObservability(obs Observability) StreamInOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// StreamOutStore injects a custom DocumentStore implementation.
func StreamOutStore(st DocumentStore) StreamOutOption {
	return func(f *Flow) {
		if f != nil && st != nil {
			f.appendOptions(WithStore(st))
		}
	}
}

// StreamOutDeadLetter lets callers bring their own dead-letter log.
func StreamOutDeadLetter(dlq DeadLetter) StreamOutOption {
	return func(f *Flow) {
		if f != nil && dlq != nil {
			f.appendOptions(WithDeadLetter(dlq))
		}
	}
}

// StreamOutObservability replaces the default observability backend.
func StreamOutObservability(obs Observability) StreamOutOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// StreamOutCallback installs a store built from a simple callback function.
func StreamOutCallback(name string, fn DocumentBatchStore) StreamOutOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(WithStore(NewCallbackStore(name, fn)))
		}
	}
}

// StreamOutProgress directs progress lines to w.
func StreamOutProgress(w io.Writer) StreamOutOption {
	return func(f *Flow) {
		if f != nil && w != nil {
			f.appendOptions(WithProgress(w))
		}
	}
}

func (f *Flow) appendOptions(opts ...RuntimeOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
