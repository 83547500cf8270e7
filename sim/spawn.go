package sim

// SpawnController injects new cars at the grid's four corner regions
// on a fixed cadence and signals the end of the run when a full spawn
// cycle places no car anywhere.
type SpawnController struct {
	interval int
	corner   int
}

func newSpawnController(interval, cornerSize int) *SpawnController {
	if cornerSize < 1 {
		cornerSize = 1
	}
	return &SpawnController{interval: interval, corner: cornerSize}
}

// due reports whether tick is a spawn tick. A non-positive interval
// disables automatic spawning entirely.
func (s *SpawnController) due(tick int) bool {
	if s.interval <= 0 {
		return false
	}
	return tick == 1 || tick%s.interval == 0
}

// regions lists the four corner regions in fixed order: top-left,
// top-right, bottom-left, bottom-right.
func (s *SpawnController) regions(width, height int) [4][]Coord {
	size := s.corner
	if size > width {
		size = width
	}
	if size > height {
		size = height
	}

	span := func(x0, x1, y0, y1 int) []Coord {
		var cells []Coord
		for x := x0; x < x1; x++ {
			for y := y0; y < y1; y++ {
				cells = append(cells, Coord{X: x, Y: y})
			}
		}
		return cells
	}

	return [4][]Coord{
		span(0, size, height-size, height),
		span(width-size, width, height-size, height),
		span(0, size, 0, size),
		span(width-size, width, 0, size),
	}
}

// spawn attempts to place one car per corner on an unoccupied
// traffic-bearing road cell, each with a uniformly random
// destination. It returns how many cars were placed; a corner with no
// free cell is silently skipped this cycle.
func (s *SpawnController) spawn(m *Model) int {
	if len(m.destinations) == 0 {
		return 0
	}

	spawned := 0
	for _, region := range s.regions(m.grid.Width(), m.grid.Height()) {
		var free []Coord
		for _, pos := range region {
			seg := m.grid.RoadAt(pos)
			if seg == nil || seg.Decorative {
				continue
			}
			if m.grid.CarAt(pos) != nil || m.grid.HasObstacle(pos) {
				continue
			}
			free = append(free, pos)
		}
		if len(free) == 0 {
			continue
		}

		pos := free[m.rnd.IntN(len(free))]
		dest := m.destinations[m.rnd.IntN(len(m.destinations))]
		_, err := m.AddCar(pos, dest)
		if err != nil {
			m.logger.Error("corner spawn failed", "pos", pos, "err", err)
			continue
		}
		spawned++
	}
	return spawned
}
