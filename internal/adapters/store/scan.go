package store

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ghalamif/ModFlow/internal/domain"
)

// sqlite3 renders time.Time values in one of these forms.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
}

func (s *SQLStore) fromRow(m map[string]any) (domain.Record, error) {
	rec := domain.Record{
		Values: make(map[string]float64, len(s.layout.Fields)),
		Flags:  make(map[string]bool, len(s.layout.Flags)),
	}

	id, err := asInt(m[domain.ColumnID])
	if err != nil {
		return rec, fmt.Errorf("column %s: %w", domain.ColumnID, err)
	}
	rec.ID = id

	if rec.CapturedAt, err = asTime(m[domain.ColumnCapturedAt]); err != nil {
		return rec, fmt.Errorf("column %s: %w", domain.ColumnCapturedAt, err)
	}
	rec.Date = asString(m[domain.ColumnDate])
	rec.Time = asString(m[domain.ColumnTime])
	rec.BatchID = asString(m[domain.ColumnBatchID])

	for _, f := range s.layout.Flags {
		n, err := asInt(m[f.Name])
		if err != nil {
			return rec, fmt.Errorf("column %s: %w", f.Name, err)
		}
		rec.Flags[f.Name] = n != 0
	}
	for _, f := range s.layout.Fields {
		raw := m[f.Name]
		if raw == nil {
			continue
		}
		v, err := asFloat(raw)
		if err != nil {
			return rec, fmt.Errorf("column %s: %w", f.Name, err)
		}
		rec.Values[f.Name] = v
	}
	return rec, nil
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func asInt(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	case string:
		return strconv.ParseInt(x, 10, 64)
	}
	return 0, fmt.Errorf("unexpected type %T", v)
}

func asFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case []byte:
		return strconv.ParseFloat(string(x), 64)
	case string:
		return strconv.ParseFloat(x, 64)
	}
	return 0, fmt.Errorf("unexpected type %T", v)
}

func asTime(v any) (time.Time, error) {
	var raw string
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), nil
	case []byte:
		raw = string(x)
	case string:
		raw = x
	default:
		return time.Time{}, fmt.Errorf("unexpected type %T", v)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable time %q", raw)
}
