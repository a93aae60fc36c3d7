package modflow

import (
	"github.com/ghalamif/ModFlow/internal/app/pipeline"
	"github.com/ghalamif/ModFlow/internal/domain"
	"github.com/ghalamif/ModFlow/internal/ports"
)

// Record is one persisted poll cycle. Fields() flattens it for JSON or templates.
type Record = domain.Record

// Reading is the decoded float vector of one poll.
type Reading = domain.Reading

// Snapshot is one poll's raw register words.
type Snapshot = domain.Snapshot

// Transport reads register blocks from a controller (Modbus/TCP, simulators, etc.).
type Transport = ports.Transport

// Trigger decides whether a reading is persisted.
type Trigger = ports.Trigger

// RecordStore is the durable record table.
type RecordStore = ports.RecordStore

// RecordPublisher is notified of every committed record.
type RecordPublisher = ports.RecordPublisher

// TelemetryWriter mirrors every decoded reading.
type TelemetryWriter = ports.TelemetryWriter

// Observability emits logs and metrics about poll cycles.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// Filter selects records; the zero value matches everything.
type Filter = ports.Filter

// Batch matches exactly the records of batch id, including the empty batch.
func Batch(id string) Filter { return ports.Batch(id) }

// Page describes one slice of an ordered listing.
type Page = ports.Page

// CycleResult describes one completed poll cycle.
type CycleResult = pipeline.CycleResult

// Outcome classifies a poll cycle.
type Outcome = pipeline.Outcome

const (
	OutcomePersisted       = pipeline.OutcomePersisted
	OutcomeSkipped         = pipeline.OutcomeSkipped
	OutcomeTransportFailed = pipeline.OutcomeTransportFailed
	OutcomeDecodeFailed    = pipeline.OutcomeDecodeFailed
	OutcomePersistFailed   = pipeline.OutcomePersistFailed
)

// Error classes, for use with errors.Is.
var (
	ErrTransport     = domain.ErrTransport
	ErrDecode        = domain.ErrDecode
	ErrInvalidConfig = domain.ErrInvalidConfig
	ErrPersistence   = domain.ErrPersistence
)
