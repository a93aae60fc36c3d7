package ports

import (
	"context"

	"github.com/ghalamif/ModFlow/internal/domain"
)

// Filter selects records. The zero value matches everything. A non-empty
// BatchID, or HasBatch set, matches batch_id exactly; HasBatch with an empty
// BatchID selects the records captured without a batch.
type Filter struct {
	BatchID  string
	HasBatch bool
}

// Batch matches exactly the records of batch id, including the empty batch.
func Batch(id string) Filter {
	return Filter{BatchID: id, HasBatch: true}
}

// Empty reports whether f matches every record.
func (f Filter) Empty() bool {
	return f.BatchID == "" && !f.HasBatch
}

// Page describes one slice of an ordered listing. Limit <= 0 means no limit.
type Page struct {
	Filter     Filter
	OrderBy    string
	Descending bool
	Offset     int
	Limit      int
}

// RecordWriter appends records. Only the poll loop writes.
type RecordWriter interface {
	Insert(ctx context.Context, rec domain.Record) (int64, error)
}

// RecordReader is the read side handed to the serving layer.
type RecordReader interface {
	ListPage(ctx context.Context, p Page) ([]domain.Record, error)
	Count(ctx context.Context, f Filter) (int, error)
}

// RecordDeleter removes records. Deleting nothing is not an error.
type RecordDeleter interface {
	DeleteWhere(ctx context.Context, f Filter) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// RecordStore is the durable record table.
type RecordStore interface {
	RecordWriter
	RecordReader
	RecordDeleter
	Ping(ctx context.Context) error
	Close() error
	Name() string
}
