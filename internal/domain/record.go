package domain

import "time"

// Layouts used for the date and time columns.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Record is one persisted poll cycle. Records are never updated in place.
type Record struct {
	// ID is assigned by the store on insert; zero until then.
	ID         int64
	CapturedAt time.Time
	Date       string
	Time       string
	BatchID    string
	Values     map[string]float64
	Flags      map[string]bool
}

// Fields flattens the record into a column-name keyed map. Flags are reported
// as 0/1 integers, matching their stored form. Fields missing from a short
// reading are absent.
func (r Record) Fields() map[string]any {
	out := make(map[string]any, 5+len(r.Values)+len(r.Flags))
	out[ColumnID] = r.ID
	out[ColumnCapturedAt] = r.CapturedAt
	out[ColumnDate] = r.Date
	out[ColumnTime] = r.Time
	out[ColumnBatchID] = r.BatchID
	for k, v := range r.Flags {
		out[k] = boolToInt(v)
	}
	for k, v := range r.Values {
		out[k] = v
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
