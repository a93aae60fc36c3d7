// Package influx mirrors every decoded reading into InfluxDB as a time series,
// whether or not the cycle was persisted.
package influx

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"

	"github.com/ghalamif/ModFlow/internal/domain"
	"github.com/ghalamif/ModFlow/internal/ports"
)

const pingTimeout = 5 * time.Second

// Config for the telemetry mirror. An empty URL disables it.
type Config struct {
	URL           string        `yaml:"url"`
	Token         string        `yaml:"token"`
	Org           string        `yaml:"org"`
	Bucket        string        `yaml:"bucket"`
	Measurement   string        `yaml:"measurement"`
	BatchSize     uint          `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

func (c Config) Enabled() bool { return c.URL != "" }

func (c *Config) ApplyDefaults() {
	if c.Measurement == "" {
		c.Measurement = "modflow_reading"
	}
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 10 * time.Second
	}
}

func (c *Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.Org == "" {
		return domain.Configf("influx.org", "org is required")
	}
	if c.Bucket == "" {
		return domain.Configf("influx.bucket", "bucket is required")
	}
	return nil
}

type pointWriter interface {
	WritePoint(p *write.Point)
}

// Writer turns readings into points on a non-blocking write API.
type Writer struct {
	api         pointWriter
	measurement string
	fields      []domain.FieldSpec
	close       func()
}

// Connect pings the server and starts a batching write API. Asynchronous
// write errors are logged through log.
func Connect(cfg Config, layout domain.Layout, log logrus.FieldLogger) (*Writer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(cfg.BatchSize).
			SetFlushInterval(uint(cfg.FlushInterval.Milliseconds())))

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influx ping %s: %w", cfg.URL, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("influx ping %s: server not healthy", cfg.URL)
	}

	api := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func() {
		for err := range api.Errors() {
			if log != nil {
				log.WithError(err).Warn("influx write failed")
			}
		}
	}()

	return NewWriter(api, cfg.Measurement, layout, func() {
		api.Flush()
		client.Close()
	}), nil
}

// NewWriter wraps any point sink. closeFn may be nil.
func NewWriter(api pointWriter, measurement string, layout domain.Layout, closeFn func()) *Writer {
	return &Writer{
		api:         api,
		measurement: measurement,
		fields:      layout.Fields,
		close:       closeFn,
	}
}

// WriteReading emits one point tagged with the trigger outcome. Non-finite
// values are dropped since line protocol cannot carry them.
func (w *Writer) WriteReading(r domain.Reading, triggered bool, at time.Time) {
	fields := make(map[string]interface{}, len(w.fields))
	for _, f := range w.fields {
		v, ok := r.At(f.Position)
		if !ok {
			continue
		}
		fv := float64(v)
		if math.IsNaN(fv) || math.IsInf(fv, 0) {
			continue
		}
		fields[f.Name] = fv
	}
	if len(fields) == 0 {
		return
	}
	tags := map[string]string{"trigger": strconv.FormatBool(triggered)}
	w.api.WritePoint(write.NewPoint(w.measurement, tags, fields, at))
}

func (w *Writer) Close() error {
	if w.close != nil {
		w.close()
	}
	return nil
}

var _ ports.TelemetryWriter = (*Writer)(nil)
