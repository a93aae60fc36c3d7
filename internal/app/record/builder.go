// Package record turns a decoded reading into the row persisted for it.
package record

import (
	"math"
	"strconv"
	"time"

	"github.com/ghalamif/ModFlow/internal/app/trigger"
	"github.com/ghalamif/ModFlow/internal/domain"
)

// Builder maps reading positions onto the columns of a layout.
type Builder struct {
	layout domain.Layout
}

func NewBuilder(layout domain.Layout) *Builder {
	return &Builder{layout: layout}
}

// Layout returns the layout the builder was created with.
func (b *Builder) Layout() domain.Layout { return b.layout }

// Build assembles the record for reading r captured at capturedAt. Date and
// time are rendered in capturedAt's location. Positions missing from a short
// reading are left out of the record.
func (b *Builder) Build(r domain.Reading, capturedAt time.Time) domain.Record {
	rec := domain.Record{
		CapturedAt: capturedAt,
		Date:       capturedAt.Format(domain.DateLayout),
		Time:       capturedAt.Format(domain.TimeLayout),
		Values:     make(map[string]float64, len(b.layout.Fields)),
		Flags:      make(map[string]bool, len(b.layout.Flags)),
	}
	if v, ok := r.At(b.layout.BatchPosition); ok {
		rec.BatchID = BatchID(v)
	}
	for _, f := range b.layout.Flags {
		if v, ok := r.At(f.Position); ok {
			rec.Flags[f.Name] = Flag(v)
		}
	}
	for _, f := range b.layout.Fields {
		if v, ok := r.At(f.Position); ok {
			rec.Values[f.Name] = float64(v)
		}
	}
	return rec
}

// BatchID renders v rounded half to even as a decimal integer. Non-finite
// values produce an empty id.
func BatchID(v float32) string {
	n := trigger.Round(v)
	if math.IsNaN(n) {
		return ""
	}
	if n == 0 {
		// -0.3 rounds to negative zero.
		n = 0
	}
	// Formatting the float keeps values beyond the int64 range exact.
	return strconv.FormatFloat(n, 'f', 0, 64)
}

// Flag reports whether v rounds to something other than zero. NaN is false.
func Flag(v float32) bool {
	n := trigger.Round(v)
	return !math.IsNaN(n) && n != 0
}
