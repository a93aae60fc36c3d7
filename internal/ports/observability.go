package ports

// Metric names shared by the poll loop and the observability adapters.
const (
	MetricCyclesTotal          = "modflow_cycles_total"
	MetricRecordsPersisted     = "modflow_records_persisted_total"
	MetricCyclesSkipped        = "modflow_cycles_skipped_total"
	MetricTransportFailures    = "modflow_transport_failures_total"
	MetricDecodeFailures       = "modflow_decode_failures_total"
	MetricPersistFailures      = "modflow_persist_failures_total"
	MetricPublishFailures      = "modflow_publish_failures_total"
	MetricCycleDuration        = "modflow_cycle_duration_seconds"
	MetricReadLatency          = "modflow_read_latency_seconds"
	MetricLastSuccessTimestamp = "modflow_last_success_timestamp_seconds"
	MetricControllerConnected  = "modflow_controller_connected"
)

type Observability interface {
	LogDebug(msg string, fields ...Field)
	LogInfo(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	ObserveLatency(name string, seconds float64)

	SetGauge(name string, v float64)
}

type Field struct {
	Key   string
	Value any
}
