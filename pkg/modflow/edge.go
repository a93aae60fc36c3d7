package modflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/ghalamif/ModFlow/internal/adapters/influx"
	"github.com/ghalamif/ModFlow/internal/adapters/modbus"
	"github.com/ghalamif/ModFlow/internal/adapters/mqtt"
	"github.com/ghalamif/ModFlow/internal/adapters/observability"
	"github.com/ghalamif/ModFlow/internal/adapters/store"
	"github.com/ghalamif/ModFlow/internal/app/pipeline"
	"github.com/ghalamif/ModFlow/internal/app/record"
	"github.com/ghalamif/ModFlow/internal/app/trigger"
	"github.com/ghalamif/ModFlow/internal/ports"
)

// EdgeRuntimeOption customizes the dependencies used by EdgeRuntime.
type EdgeRuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	transport     Transport
	trigger       Trigger
	store         RecordStore
	publishers    []RecordPublisher
	telemetry     TelemetryWriter
	observability Observability
	logger        *logrus.Logger
	registry      *prometheus.Registry
	clock         func() time.Time
	cycleHook     func(CycleResult)
}

// WithTransport injects a custom transport (simulators, serial gateways, etc.).
func WithTransport(t Transport) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.transport = t
	}
}

// WithTrigger replaces the level trigger built from TriggerConfig.
func WithTrigger(t Trigger) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.trigger = t
	}
}

// WithStore injects a record store instead of opening the configured database.
// The runtime closes it on shutdown.
func WithStore(s RecordStore) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.store = s
	}
}

// WithPublishers adds record publishers after the configured MQTT publisher.
func WithPublishers(pubs ...RecordPublisher) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		for _, p := range pubs {
			if p != nil {
				o.publishers = append(o.publishers, p)
			}
		}
	}
}

// WithTelemetry replaces the configured InfluxDB mirror.
func WithTelemetry(tw TelemetryWriter) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.telemetry = tw
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithLogger replaces the logger built from LoggingConfig.
func WithLogger(l *logrus.Logger) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.logger = l
	}
}

// WithRegistry registers metrics on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.registry = reg
	}
}

// WithClock replaces time.Now as the capture clock.
func WithClock(now func() time.Time) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.clock = now
	}
}

// WithCycleHook is called after every poll cycle.
func WithCycleHook(fn func(CycleResult)) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.cycleHook = fn
	}
}

// EdgeRuntime wires transport → decode → trigger → store and owns the
// lifecycle of every adapter it opened.
type EdgeRuntime struct {
	cfg        *Config
	id         string
	log        *logrus.Logger
	obs        ports.Observability
	registry   *prometheus.Registry
	transport  ports.Transport
	trigger    ports.Trigger
	store      ports.RecordStore
	publishers []ports.RecordPublisher
	telemetry  ports.TelemetryWriter
	loop       *pipeline.PollLoop

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	loopDone chan struct{}
	ops      *observability.OpsServer

	closeOnce sync.Once
	closeErrs []error
}

// NewEdgeRuntime normalizes cfg and bootstraps the default adapters: Modbus/TCP
// transport, SQL store, Prometheus observability and, when configured, the
// MQTT publisher and InfluxDB mirror. A store that cannot be opened is fatal.
func NewEdgeRuntime(cfg *Config, opts ...EdgeRuntimeOption) (*EdgeRuntime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	id := uuid.NewString()
	logger := overrides.logger
	if logger == nil {
		logger = observability.NewLogger(cfg.Logging, os.Stderr)
	}
	entry := logger.WithField("instance", id)

	reg := overrides.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	obs := overrides.observability
	if obs == nil {
		obs = observability.NewPromObs(entry, reg)
	}

	rt := &EdgeRuntime{
		cfg:      cfg,
		id:       id,
		log:      logger,
		obs:      obs,
		registry: reg,
	}

	rt.store = overrides.store
	if rt.store == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		s, err := store.Open(ctx, cfg.Store, cfg.Record)
		cancel()
		if err != nil {
			return nil, err
		}
		rt.store = s
	}

	rt.transport = overrides.transport
	if rt.transport == nil {
		c, err := modbus.NewClient(cfg.Modbus)
		if err != nil {
			return nil, rt.abort(err)
		}
		rt.transport = c
	}

	rt.trigger = overrides.trigger
	if rt.trigger == nil {
		rt.trigger = trigger.NewLevel(cfg.Trigger)
	}

	if cfg.MQTT.Enabled() {
		mcfg := cfg.MQTT
		if mcfg.ClientID == "" {
			mcfg.ClientID = "modflow-" + id[:8]
		}
		pub, err := mqtt.Connect(mcfg)
		if err != nil {
			return nil, rt.abort(err)
		}
		rt.publishers = append(rt.publishers, pub)
	}
	rt.publishers = append(rt.publishers, overrides.publishers...)

	rt.telemetry = overrides.telemetry
	if rt.telemetry == nil && cfg.Influx.Enabled() {
		w, err := influx.Connect(cfg.Influx, cfg.Record, entry)
		if err != nil {
			return nil, rt.abort(err)
		}
		rt.telemetry = w
	}

	loopOpts := []pipeline.Option{
		pipeline.WithPublishers(rt.publishers...),
		pipeline.WithClock(overrides.clock),
		pipeline.WithCycleHook(overrides.cycleHook),
	}
	if rt.telemetry != nil {
		loopOpts = append(loopOpts, pipeline.WithTelemetry(rt.telemetry))
	}
	rt.loop = pipeline.NewPollLoop(
		rt.transport,
		cfg.Modbus.Block(),
		rt.trigger,
		record.NewBuilder(cfg.Record),
		rt.store,
		cfg.Poll,
		obs,
		loopOpts...,
	)
	return rt, nil
}

// InstanceID identifies this runtime in logs.
func (e *EdgeRuntime) InstanceID() string { return e.id }

// Registry exposes the Prometheus registry served on /metrics.
func (e *EdgeRuntime) Registry() *prometheus.Registry { return e.registry }

// Records returns the read and delete surface of the runtime's store. Closing
// it does not close the store.
func (e *EdgeRuntime) Records() *Records { return NewRecords(e.store) }

// Start launches the poll loop and the ops server and returns immediately.
func (e *EdgeRuntime) Start() error {
	if e == nil {
		return fmt.Errorf("edge runtime is nil")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return fmt.Errorf("edge runtime already started")
	}
	e.started = true

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.loopDone = make(chan struct{})
	go func() {
		defer close(e.loopDone)
		_ = e.loop.Run(ctx)
	}()

	if e.cfg.Metrics.Enabled() {
		router := observability.NewOpsRouter(e.registry, e.store.Ping)
		e.ops = observability.NewOpsServer(e.cfg.Metrics.Addr, router, e.log.WithField("instance", e.id))
		e.ops.Start()
		e.obs.LogInfo("ops_server_started", ports.Field{Key: "addr", Value: e.cfg.Metrics.Addr})
	}
	return nil
}

// Run starts the runtime and blocks until ctx is cancelled, then shuts down.
// The shutdown budget covers one in-flight cycle.
func (e *EdgeRuntime) Run(ctx context.Context) error {
	if err := e.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), e.cfg.Modbus.Timeout+5*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// Shutdown stops the poll loop after its current cycle, then closes every
// adapter. It is safe to call on a runtime that was never started.
func (e *EdgeRuntime) Shutdown(ctx context.Context) error {
	var errs []error

	e.mu.Lock()
	cancel, done, ops := e.cancel, e.loopDone, e.ops
	e.cancel, e.ops = nil, nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("poll loop did not stop: %w", ctx.Err()))
		}
	}

	if ops != nil {
		if err := ops.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(append(errs, e.closeAdapters()...)...)
}

// abort releases whatever NewEdgeRuntime opened before failing.
func (e *EdgeRuntime) abort(err error) error {
	return errors.Join(append([]error{err}, e.closeAdapters()...)...)
}

func (e *EdgeRuntime) closeAdapters() []error {
	e.closeOnce.Do(func() { e.closeErrs = e.closeAll() })
	return e.closeErrs
}

func (e *EdgeRuntime) closeAll() []error {
	var errs []error
	if e.transport != nil {
		if err := e.transport.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range e.publishers {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close publisher %s: %w", p.Name(), err))
			}
		}
	}
	if e.telemetry != nil {
		if err := e.telemetry.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
