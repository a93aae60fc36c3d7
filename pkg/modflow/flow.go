package modflow

import (
	"context"
	"fmt"
)

// Flow is a convenience builder that lets callers say Conf → StreamIN → StreamOUT
// without touching the underlying hexagonal wiring.
type Flow struct {
	cfg  *Config
	opts []EdgeRuntimeOption
}

// FlowOption mutates the Flow after configuration is loaded.
type FlowOption func(*Flow)

// StreamInOption configures the controller side of the loop.
type StreamInOption func(*Flow)

// StreamOutOption configures where records and readings go.
type StreamOutOption func(*Flow)

// Conf loads YAML from disk, applies FlowOption values, and returns a Flow builder.
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

// Config returns the underlying configuration so callers can tweak it before building a runtime.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options appends raw EdgeRuntimeOption values to the builder for advanced scenarios.
func (f *Flow) Options(opts ...EdgeRuntimeOption) *Flow {
	if f == nil {
		return nil
	}
	f.appendOptions(opts...)
	return f
}

// StreamIN records controller-side overrides (transport, trigger, clock).
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

// StreamOUT records output overrides and builds an EdgeRuntime ready to run.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*EdgeRuntime, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return NewEdgeRuntime(f.cfg, f.opts...)
}

// Run is a shortcut for StreamOUT + runtime.Run.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	rt, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// WithFlowOptions appends EdgeRuntimeOption values during Conf.
func WithFlowOptions(opts ...EdgeRuntimeOption) FlowOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(opts...)
		}
	}
}

// StreamInTransport replaces the Modbus/TCP client.
func StreamInTransport(t Transport) StreamInOption {
	return func(f *Flow) {
		if f != nil && t != nil {
			f.appendOptions(WithTransport(t))
		}
	}
}

// StreamInTrigger replaces the configured level trigger.
func StreamInTrigger(t Trigger) StreamInOption {
	return func(f *Flow) {
		if f != nil && t != nil {
			f.appendOptions(WithTrigger(t))
		}
	}
}

// StreamInObservability overrides the default Prometheus-based observability stack.
func StreamInObservability(obs Observability) StreamInOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// StreamOutStore injects a record store instead of opening the configured one.
func StreamOutStore(s RecordStore) StreamOutOption {
	return func(f *Flow) {
		if f != nil && s != nil {
			f.appendOptions(WithStore(s))
		}
	}
}

// StreamOutPublisher forwards every committed record to p.
func StreamOutPublisher(p RecordPublisher) StreamOutOption {
	return func(f *Flow) {
		if f != nil && p != nil {
			f.appendOptions(WithPublishers(p))
		}
	}
}

// StreamOutTelemetry mirrors every decoded reading to tw.
func StreamOutTelemetry(tw TelemetryWriter) StreamOutOption {
	return func(f *Flow) {
		if f != nil && tw != nil {
			f.appendOptions(WithTelemetry(tw))
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

// StreamOutCallback installs a publisher built from a simple callback function.
func StreamOutCallback(name string, fn RecordHandler) StreamOutOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(WithPublishers(NewCallbackPublisher(name, fn)))
		}
	}
}

// StreamOutChannel installs a channel publisher and hands its channel and
// close function to the caller.
func StreamOutChannel(name string, buffer int, out *<-chan Record, closeFn *func()) StreamOutOption {
	return func(f *Flow) {
		if f == nil {
			return
		}
		p, ch, stop := NewChannelPublisher(name, buffer)
		if out != nil {
			*out = ch
		}
		if closeFn != nil {
			*closeFn = stop
		}
		f.appendOptions(WithPublishers(p))
	}
}

func (f *Flow) appendOptions(opts ...EdgeRuntimeOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
