package modflow

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/ModFlow/internal/adapters/store"
)

func TestOpenRecordsListsAndDeletes(t *testing.T) {
	ctx := context.Background()
	cfg := StoreConfig{DSN: filepath.Join(t.TempDir(), "records.db")}
	layout := DefaultLayout()

	writer, err := store.Open(ctx, cfg, layout)
	require.NoError(t, err)
	at := time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC)
	for i, batch := range []string{"3", "3", "4"} {
		_, err := writer.Insert(ctx, Record{
			CapturedAt: at.Add(time.Duration(i) * time.Second),
			Date:       "2024-03-10",
			Time:       "08:30:00",
			BatchID:    batch,
			Values:     map[string]float64{"motor_speed": float64(1000 + i)},
			Flags:      map[string]bool{"process_start": true},
		})
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	recs, err := OpenRecords(ctx, cfg, Layout{})
	require.NoError(t, err)
	defer recs.Close()

	page, err := recs.ListPage(ctx, Page{Filter: Filter{BatchID: "3"}, OrderBy: "motor_speed", Descending: true})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, 1001.0, page[0].Values["motor_speed"])
	assert.Equal(t, 1, page[0].Fields()["process_start"])

	n, err := recs.DeleteWhere(ctx, Filter{})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = recs.DeleteWhere(ctx, Filter{BatchID: "3"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	total, err := recs.Count(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	n, err = recs.DeleteAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestRuntimeRecordsDoesNotCloseStore(t *testing.T) {
	st := &stubStore{}
	require.NoError(t, NewRecords(st).Close())
	assert.False(t, st.closed)
}
