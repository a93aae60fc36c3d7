package pipeline

import (
	"context"
	"time"

	"github.com/ghalamif/ModFlow/internal/app/decode"
	"github.com/ghalamif/ModFlow/internal/app/record"
	"github.com/ghalamif/ModFlow/internal/domain"
	"github.com/ghalamif/ModFlow/internal/ports"
)

// Outcome classifies how a poll cycle ended.
type Outcome int

const (
	OutcomePersisted Outcome = iota
	OutcomeSkipped
	OutcomeTransportFailed
	OutcomeDecodeFailed
	OutcomePersistFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePersisted:
		return "persisted"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeTransportFailed:
		return "transport_failed"
	case OutcomeDecodeFailed:
		return "decode_failed"
	case OutcomePersistFailed:
		return "persist_failed"
	}
	return "unknown"
}

// Failed reports whether the loop should wait the failure delay.
func (o Outcome) Failed() bool {
	return o == OutcomeTransportFailed || o == OutcomeDecodeFailed || o == OutcomePersistFailed
}

// CycleResult describes one completed cycle. Record is set only when the
// outcome is OutcomePersisted.
type CycleResult struct {
	Cycle    uint64
	Outcome  Outcome
	Record   domain.Record
	Err      error
	Duration time.Duration
}

// connectionReporter is implemented by transports that can tell whether
// their connection is currently up.
type connectionReporter interface {
	Connected() bool
}

// PollLoop reads, decodes, evaluates and persists one block per cycle.
// Cycles never overlap.
type PollLoop struct {
	transport  ports.Transport
	block      domain.Block
	trigger    ports.Trigger
	builder    *record.Builder
	store      ports.RecordWriter
	publishers []ports.RecordPublisher
	telemetry  ports.TelemetryWriter
	policy     ports.Policy
	obs        ports.Observability
	now        func() time.Time
	onCycle    func(CycleResult)
	cycle      uint64
}

type Option func(*PollLoop)

// WithPublishers forwards every committed record to pubs, in order.
func WithPublishers(pubs ...ports.RecordPublisher) Option {
	return func(p *PollLoop) {
		for _, pub := range pubs {
			if pub != nil {
				p.publishers = append(p.publishers, pub)
			}
		}
	}
}

// WithTelemetry mirrors every decoded reading to tw.
func WithTelemetry(tw ports.TelemetryWriter) Option {
	return func(p *PollLoop) { p.telemetry = tw }
}

// WithClock replaces time.Now as the source of capture timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *PollLoop) {
		if now != nil {
			p.now = now
		}
	}
}

// WithCycleHook is called by Run after every cycle.
func WithCycleHook(fn func(CycleResult)) Option {
	return func(p *PollLoop) { p.onCycle = fn }
}

func NewPollLoop(t ports.Transport, block domain.Block, trg ports.Trigger, b *record.Builder, w ports.RecordWriter, pol ports.Policy, obs ports.Observability, opts ...Option) *PollLoop {
	p := &PollLoop{
		transport: t,
		block:     block,
		trigger:   trg,
		builder:   b,
		store:     w,
		policy:    pol,
		obs:       obs,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Run polls until ctx is cancelled. A cycle in progress always completes;
// cancellation is observed only between cycles.
func (p *PollLoop) Run(ctx context.Context) error {
	p.obs.LogInfo("poll_loop_started",
		ports.Field{Key: "address", Value: p.block.Address},
		ports.Field{Key: "count", Value: p.block.Count},
		ports.Field{Key: "interval", Value: p.policy.Interval.String()})

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	cycleCtx := context.WithoutCancel(ctx)
	for {
		if ctx.Err() != nil {
			break
		}
		res := p.RunCycle(cycleCtx)
		if p.onCycle != nil {
			p.onCycle(res)
		}

		delay := p.policy.Interval
		if res.Outcome.Failed() {
			delay = p.policy.FailureDelay
		}
		if ctx.Err() != nil {
			break
		}
		if timer == nil {
			timer = time.NewTimer(delay)
		} else {
			timer.Reset(delay)
		}
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}

	p.obs.LogInfo("poll_loop_stopped", ports.Field{Key: "cycles", Value: p.cycle})
	return nil
}

// RunCycle performs exactly one read-decode-evaluate-persist pass. Failures
// are reported in the result, never returned.
func (p *PollLoop) RunCycle(ctx context.Context) (res CycleResult) {
	start := time.Now()
	p.cycle++
	res.Cycle = p.cycle
	defer func() {
		res.Duration = time.Since(start)
		p.obs.ObserveLatency(ports.MetricCycleDuration, res.Duration.Seconds())
	}()
	p.obs.IncCounter(ports.MetricCyclesTotal, 1)

	snap, err := p.transport.ReadBlock(ctx, p.block.Address, p.block.Count)
	p.obs.ObserveLatency(ports.MetricReadLatency, time.Since(start).Seconds())
	p.reportConnection(err == nil)
	if err != nil {
		p.obs.IncCounter(ports.MetricTransportFailures, 1)
		p.obs.LogError("transport_read_failed", err, p.fields()...)
		res.Outcome, res.Err = OutcomeTransportFailed, err
		return res
	}

	capturedAt := p.now()
	p.obs.SetGauge(ports.MetricLastSuccessTimestamp, float64(capturedAt.Unix()))

	reading, err := decode.Decode(snap, int(p.block.Count))
	if err != nil {
		p.obs.IncCounter(ports.MetricDecodeFailures, 1)
		p.obs.LogError("decode_failed", err, p.fields()...)
		res.Outcome, res.Err = OutcomeDecodeFailed, err
		return res
	}

	triggered := p.trigger.ShouldPersist(reading)
	if p.telemetry != nil {
		p.telemetry.WriteReading(reading, triggered, capturedAt)
	}
	if !triggered {
		p.obs.IncCounter(ports.MetricCyclesSkipped, 1)
		p.obs.LogDebug("cycle_skipped", p.fields()...)
		res.Outcome = OutcomeSkipped
		return res
	}

	rec := p.builder.Build(reading, capturedAt)
	id, err := p.store.Insert(ctx, rec)
	if err != nil {
		p.obs.IncCounter(ports.MetricPersistFailures, 1)
		p.obs.LogError("persist_failed", err, append(p.fields(), ports.Field{Key: "batch_id", Value: rec.BatchID})...)
		res.Outcome, res.Err = OutcomePersistFailed, err
		return res
	}
	rec.ID = id
	p.obs.IncCounter(ports.MetricRecordsPersisted, 1)
	p.obs.LogInfo("record_persisted",
		append(p.fields(), ports.Field{Key: "id", Value: id}, ports.Field{Key: "batch_id", Value: rec.BatchID})...)

	for _, pub := range p.publishers {
		if err := pub.Publish(ctx, rec); err != nil {
			p.obs.IncCounter(ports.MetricPublishFailures, 1)
			p.obs.LogError("publish_failed", err,
				ports.Field{Key: "publisher", Value: pub.Name()},
				ports.Field{Key: "id", Value: id})
		}
	}

	res.Outcome, res.Record = OutcomePersisted, rec
	return res
}

func (p *PollLoop) reportConnection(ok bool) {
	up := ok
	if cr, isReporter := p.transport.(connectionReporter); isReporter {
		up = cr.Connected()
	}
	v := 0.0
	if up {
		v = 1
	}
	p.obs.SetGauge(ports.MetricControllerConnected, v)
}

func (p *PollLoop) fields() []ports.Field {
	return []ports.Field{
		{Key: "cycle", Value: p.cycle},
		{Key: "address", Value: p.block.Address},
		{Key: "count", Value: p.block.Count},
	}
}
