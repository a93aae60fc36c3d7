package ports

import (
	"context"
	"time"

	"github.com/ghalamif/ModFlow/internal/domain"
)

// RecordPublisher is notified of every committed record.
type RecordPublisher interface {
	Publish(ctx context.Context, rec domain.Record) error
	Name() string
}

// TelemetryWriter mirrors every decoded reading, qualifying or not.
// Writes must not block the poll loop.
type TelemetryWriter interface {
	WriteReading(r domain.Reading, triggered bool, at time.Time)
	Close() error
}
