package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/ghalamif/ModFlow/internal/ports"
)

// PromObs logs through logrus and exports poll loop metrics to Prometheus.
type PromObs struct {
	log      logrus.FieldLogger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the metric set on reg (the default registerer when nil).
func NewPromObs(log logrus.FieldLogger, reg prometheus.Registerer) *PromObs {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}

	p := &PromObs{
		log: log,
		counters: map[string]prometheus.Counter{
			ports.MetricCyclesTotal:       counter(ports.MetricCyclesTotal, "Poll cycles run."),
			ports.MetricRecordsPersisted:  counter(ports.MetricRecordsPersisted, "Records committed to the store."),
			ports.MetricCyclesSkipped:     counter(ports.MetricCyclesSkipped, "Cycles whose reading did not trigger persistence."),
			ports.MetricTransportFailures: counter(ports.MetricTransportFailures, "Cycles that failed to read the controller."),
			ports.MetricDecodeFailures:    counter(ports.MetricDecodeFailures, "Cycles whose snapshot could not be decoded."),
			ports.MetricPersistFailures:   counter(ports.MetricPersistFailures, "Triggered records the store rejected."),
			ports.MetricPublishFailures:   counter(ports.MetricPublishFailures, "Committed records a publisher failed to forward."),
		},
		gauges: map[string]prometheus.Gauge{
			ports.MetricLastSuccessTimestamp: gauge(ports.MetricLastSuccessTimestamp, "Unix time of the last successful controller read."),
			ports.MetricControllerConnected:  gauge(ports.MetricControllerConnected, "1 while the controller connection is up."),
		},
		histos: map[string]prometheus.Observer{
			ports.MetricCycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    ports.MetricCycleDuration,
				Help:    "Wall time of one poll cycle.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
			}),
			ports.MetricReadLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    ports.MetricReadLatency,
				Help:    "Latency of one register block read.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
			}),
		},
	}

	for _, c := range p.counters {
		reg.MustRegister(c)
	}
	for _, g := range p.gauges {
		reg.MustRegister(g)
	}
	for _, h := range p.histos {
		reg.MustRegister(h.(prometheus.Collector))
	}
	return p
}

func (p *PromObs) LogDebug(msg string, fields ...ports.Field) {
	p.entry(fields).Debug(msg)
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.entry(fields).Info(msg)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.entry(fields).WithError(err).Error(msg)
}

// LogCritical never exits; the caller decides whether to stop.
func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.entry(fields).WithError(err).WithField("critical", true).Error(msg)
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

func (p *PromObs) entry(fields []ports.Field) logrus.FieldLogger {
	if len(fields) == 0 {
		return p.log
	}
	f := make(logrus.Fields, len(fields))
	for _, kv := range fields {
		f[kv.Key] = kv.Value
	}
	return p.log.WithFields(f)
}

var _ ports.Observability = (*PromObs)(nil)
