package sim

// Metrics aggregates cumulative and per-tick counters for a run.
// Arrived, steps, and lights totals fold in once per car on arrival;
// jams accumulate live so the scheduler can compute per-tick deltas.
type Metrics struct {
	Tick int `json:"tick"`

	TotalSpawned int `json:"totalSpawned"`
	TotalArrived int `json:"totalArrived"`
	TotalSteps   int `json:"totalSteps"`
	TotalLights  int `json:"totalLights"`
	TotalJams    int `json:"totalJams"`

	SpawnedThisTick int `json:"spawnedThisTick"`
	ArrivedThisTick int `json:"arrivedThisTick"`
	JamsThisTick    int `json:"jamsThisTick"`

	LiveCars int `json:"liveCars"`
}

// AverageSteps is the mean number of steps per arrived car, 0 before
// the first arrival.
func (m Metrics) AverageSteps() float64 {
	if m.TotalArrived == 0 {
		return 0
	}
	return float64(m.TotalSteps) / float64(m.TotalArrived)
}
