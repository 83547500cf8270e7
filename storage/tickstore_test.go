package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tifye/kousaten/sim"
)

func TestTickStoreRoundTrip(t *testing.T) {
	db, err := InitDuckDB("")
	require.NoError(t, err)
	defer db.Close()

	store := NewTickStore(db)
	ctx := t.Context()

	for tick := 1; tick <= 5; tick++ {
		row := RowFromMetrics("run-a", sim.Metrics{
			Tick:         tick,
			TotalSpawned: tick * 2,
			TotalArrived: tick,
			LiveCars:     tick,
		})
		require.NoError(t, store.Insert(ctx, row))
	}
	require.NoError(t, store.Insert(ctx, RowFromMetrics("run-b", sim.Metrics{Tick: 1})))

	rows, err := store.Recent(ctx, "run-a", 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 5, rows[0].Tick)
	assert.Equal(t, 3, rows[2].Tick)
	assert.Equal(t, 10, rows[0].SpawnedTotal)

	summaries, err := store.Summaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "run-a", summaries[0].RunID)
	assert.Equal(t, 5, summaries[0].Ticks)
	assert.Equal(t, 10, summaries[0].SpawnedTotal)
}
