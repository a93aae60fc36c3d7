package modflow

import (
	"context"

	base "github.com/ghalamif/ModFlow/pkg/modflow"
)

// Re-exported errors for convenience.
var (
	ErrTransport              = base.ErrTransport
	ErrDecode                 = base.ErrDecode
	ErrInvalidConfig          = base.ErrInvalidConfig
	ErrPersistence            = base.ErrPersistence
	ErrChannelPublisherClosed = base.ErrChannelPublisherClosed
	ErrChannelPublisherFull   = base.ErrChannelPublisherFull
)

// Type aliases so consumers can import github.com/ghalamif/ModFlow directly.
type (
	Config            = base.Config
	Policy            = base.Policy
	ModbusConfig      = base.ModbusConfig
	StoreConfig       = base.StoreConfig
	TriggerConfig     = base.TriggerConfig
	MetricsConfig     = base.MetricsConfig
	LoggingConfig     = base.LoggingConfig
	MQTTConfig        = base.MQTTConfig
	InfluxConfig      = base.InfluxConfig
	Layout            = base.Layout
	FieldSpec         = base.FieldSpec
	Flow              = base.Flow
	FlowOption        = base.FlowOption
	StreamInOption    = base.StreamInOption
	StreamOutOption   = base.StreamOutOption
	EdgeRuntime       = base.EdgeRuntime
	EdgeRuntimeOption = base.EdgeRuntimeOption
	Records           = base.Records
	Record            = base.Record
	Reading           = base.Reading
	Snapshot          = base.Snapshot
	Filter            = base.Filter
	Page              = base.Page
	CycleResult       = base.CycleResult
	Outcome           = base.Outcome
	RecordHandler     = base.RecordHandler
	Transport         = base.Transport
	Trigger           = base.Trigger
	RecordStore       = base.RecordStore
	RecordPublisher   = base.RecordPublisher
	TelemetryWriter   = base.TelemetryWriter
	Observability     = base.Observability
	Field             = base.Field
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

func DefaultLayout() Layout {
	return base.DefaultLayout()
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...EdgeRuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInTransport(t Transport) StreamInOption {
	return base.StreamInTransport(t)
}

func StreamInTrigger(t Trigger) StreamInOption {
	return base.StreamInTrigger(t)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutStore(s RecordStore) StreamOutOption {
	return base.StreamOutStore(s)
}

func StreamOutPublisher(p RecordPublisher) StreamOutOption {
	return base.StreamOutPublisher(p)
}

func StreamOutTelemetry(tw TelemetryWriter) StreamOutOption {
	return base.StreamOutTelemetry(tw)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn RecordHandler) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

func StreamOutChannel(name string, buffer int, out *<-chan Record, closeFn *func()) StreamOutOption {
	return base.StreamOutChannel(name, buffer, out, closeFn)
}

// Edge runtime and options.
func NewEdgeRuntime(cfg *Config, opts ...EdgeRuntimeOption) (*EdgeRuntime, error) {
	return base.NewEdgeRuntime(cfg, opts...)
}

func WithTransport(t Transport) EdgeRuntimeOption {
	return base.WithTransport(t)
}

func WithTrigger(t Trigger) EdgeRuntimeOption {
	return base.WithTrigger(t)
}

func WithStore(s RecordStore) EdgeRuntimeOption {
	return base.WithStore(s)
}

func WithPublishers(pubs ...RecordPublisher) EdgeRuntimeOption {
	return base.WithPublishers(pubs...)
}

func WithTelemetry(tw TelemetryWriter) EdgeRuntimeOption {
	return base.WithTelemetry(tw)
}

func WithObservability(obs Observability) EdgeRuntimeOption {
	return base.WithObservability(obs)
}

func WithCycleHook(fn func(CycleResult)) EdgeRuntimeOption {
	return base.WithCycleHook(fn)
}

// Publisher adapters.
func NewCallbackPublisher(name string, fn RecordHandler) RecordPublisher {
	return base.NewCallbackPublisher(name, fn)
}

func NewChannelPublisher(name string, buffer int) (RecordPublisher, <-chan Record, func()) {
	return base.NewChannelPublisher(name, buffer)
}

// Batch matches exactly the records of batch id, including the empty batch.
func Batch(id string) Filter {
	return base.Batch(id)
}

// Record table access for serving layers.
func OpenRecords(ctx context.Context, cfg StoreConfig, layout Layout) (*Records, error) {
	return base.OpenRecords(ctx, cfg, layout)
}
