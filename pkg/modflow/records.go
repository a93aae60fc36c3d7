package modflow

import (
	"context"

	"github.com/ghalamif/ModFlow/internal/adapters/store"
	"github.com/ghalamif/ModFlow/internal/ports"
)

type recordBackend interface {
	ports.RecordReader
	ports.RecordDeleter
	Close() error
}

// Records is the read and delete surface of the record table, for serving
// layers that run beside the poll loop. Inserting is left to the loop.
type Records struct {
	backend recordBackend
	owned   bool
}

// OpenRecords opens its own connection to the configured record table,
// creating the schema if needed.
func OpenRecords(ctx context.Context, cfg StoreConfig, layout Layout) (*Records, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if layout.IsZero() {
		layout = DefaultLayout()
	}
	s, err := store.Open(ctx, cfg, layout)
	if err != nil {
		return nil, err
	}
	return &Records{backend: s, owned: true}, nil
}

// NewRecords wraps an existing store. Close leaves it open.
func NewRecords(s RecordStore) *Records {
	return &Records{backend: s}
}

// ListPage returns one ordered slice of the records matching p.Filter.
// Unknown order keys fall back to id.
func (r *Records) ListPage(ctx context.Context, p Page) ([]Record, error) {
	return r.backend.ListPage(ctx, p)
}

func (r *Records) Count(ctx context.Context, f Filter) (int, error) {
	return r.backend.Count(ctx, f)
}

// DeleteWhere removes the matching records. An empty filter deletes nothing;
// use DeleteAll to clear the table.
func (r *Records) DeleteWhere(ctx context.Context, f Filter) (int64, error) {
	return r.backend.DeleteWhere(ctx, f)
}

func (r *Records) DeleteAll(ctx context.Context) (int64, error) {
	return r.backend.DeleteAll(ctx)
}

// Close releases the connection if OpenRecords created it.
func (r *Records) Close() error {
	if !r.owned {
		return nil
	}
	return r.backend.Close()
}
