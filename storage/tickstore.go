package storage

import (
	"context"
	"time"

	"github.com/tifye/kousaten/assert"
	"github.com/tifye/kousaten/sim"
)

// TickRow is one tick's worth of metrics for one run.
type TickRow struct {
	RunID        string    `db:"run_id"`
	Tick         int       `db:"tick"`
	SpawnedTotal int       `db:"spawned_total"`
	ArrivedTotal int       `db:"arrived_total"`
	StepsTotal   int       `db:"steps_total"`
	LightsTotal  int       `db:"lights_total"`
	JamsTotal    int       `db:"jams_total"`
	Spawned      int       `db:"spawned"`
	Arrived      int       `db:"arrived"`
	Jams         int       `db:"jams"`
	LiveCars     int       `db:"live_cars"`
	RecordedAt   time.Time `db:"recorded_at"`
}

// RowFromMetrics projects a metrics snapshot into a tick row.
func RowFromMetrics(runID string, m sim.Metrics) TickRow {
	return TickRow{
		RunID:        runID,
		Tick:         m.Tick,
		SpawnedTotal: m.TotalSpawned,
		ArrivedTotal: m.TotalArrived,
		StepsTotal:   m.TotalSteps,
		LightsTotal:  m.TotalLights,
		JamsTotal:    m.TotalJams,
		Spawned:      m.SpawnedThisTick,
		Arrived:      m.ArrivedThisTick,
		Jams:         m.JamsThisTick,
		LiveCars:     m.LiveCars,
		RecordedAt:   time.Now(),
	}
}

type TickStore struct {
	db DuckDB
}

func NewTickStore(db DuckDB) *TickStore {
	assert.AssertNotNil(db)
	return &TickStore{
		db: db,
	}
}

func (s *TickStore) Insert(ctx context.Context, row TickRow) error {
	query := `
	insert into ticks (
		run_id,
		tick,
		spawned_total,
		arrived_total,
		steps_total,
		lights_total,
		jams_total,
		spawned,
		arrived,
		jams,
		live_cars,
		recorded_at
	)
	values (?,?,?,?,?,?,?,?,?,?,?,?)
	`
	_, err := s.db.ExecContext(
		ctx, query,
		row.RunID,
		row.Tick,
		row.SpawnedTotal,
		row.ArrivedTotal,
		row.StepsTotal,
		row.LightsTotal,
		row.JamsTotal,
		row.Spawned,
		row.Arrived,
		row.Jams,
		row.LiveCars,
		row.RecordedAt,
	)
	return err
}

// Recent returns the latest rows of a run, newest first.
func (s *TickStore) Recent(ctx context.Context, runID string, limit uint) ([]TickRow, error) {
	assert.Assert(limit <= 1000, "limit too large")

	query := `
	select * from ticks
	where run_id = ?
	order by tick desc
	limit ?
	`
	var rows []TickRow
	err := s.db.SelectContext(ctx, &rows, query, runID, limit)
	return rows, err
}

type RunSummary struct {
	RunID        string `db:"run_id"`
	Ticks        int    `db:"ticks"`
	SpawnedTotal int    `db:"spawned_total"`
	ArrivedTotal int    `db:"arrived_total"`
	JamsTotal    int    `db:"jams_total"`
}

// Summaries aggregates every recorded run.
func (s *TickStore) Summaries(ctx context.Context) ([]RunSummary, error) {
	query := `
	select run_id,
		max(tick) as ticks,
		max(spawned_total) as spawned_total,
		max(arrived_total) as arrived_total,
		max(jams_total) as jams_total
	from ticks
	group by run_id
	order by run_id;
	`
	var summaries []RunSummary
	err := s.db.SelectContext(ctx, &summaries, query)
	return summaries, err
}
