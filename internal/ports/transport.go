package ports

import (
	"context"

	"github.com/ghalamif/ModFlow/internal/domain"
)

// Transport performs one blocking read of a contiguous register block.
// Implementations own their connection and reconnect on the next call after a
// failure; a call never blocks longer than one read timeout.
type Transport interface {
	ReadBlock(ctx context.Context, address, count uint16) (domain.Snapshot, error)
	Close() error
}
