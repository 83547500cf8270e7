package sim

import (
	"math/rand/v2"

	"github.com/charmbracelet/log"
	"github.com/tifye/kousaten/assert"
)

// Config tunes a simulation run.
type Config struct {
	// SpawnInterval is the number of ticks between spawn cycles; a
	// non-positive value disables automatic spawning.
	SpawnInterval int
	// CornerSize is the edge length of each corner spawn region.
	CornerSize int
	// Patience is how many consecutive blocked ticks a car tolerates
	// before escalating to Jammed.
	Patience int
	// JamChance is the per-tick probability a jammed car relocates.
	JamChance float64
	// Seed1 and Seed2 seed the model's PCG source. Runs with equal
	// seeds over equal maps are identical tick for tick.
	Seed1, Seed2 uint64
}

func DefaultConfig() Config {
	return Config{
		SpawnInterval: 10,
		CornerSize:    2,
		Patience:      2,
		JamChance:     0.25,
		Seed1:         42,
		Seed2:         1917,
	}
}

// Model owns the grid, every entity registry, and the tick scheduler.
// Execution is single-threaded and cooperative: one tick runs to
// completion before the next begins, and within a tick each agent's
// step runs to completion in a freshly shuffled order.
type Model struct {
	logger *log.Logger
	cfg    Config

	grid       *Grid
	roads      *RoadNetwork
	pathfinder *Pathfinder
	spawner    *SpawnController
	rnd        *rand.Rand

	tick    int
	running bool
	nextID  int

	segments     []*RoadSegment
	lights       []*TrafficLight
	obstacles    []*Obstacle
	destinations []*Destination
	cars         []*Car

	metrics Metrics
}

func NewModel(width, height int, cfg Config, logger *log.Logger) *Model {
	assert.AssertNotNil(logger)
	grid := NewGrid(width, height)
	roads := NewRoadNetwork(grid)
	return &Model{
		logger:     logger,
		cfg:        cfg,
		grid:       grid,
		roads:      roads,
		pathfinder: NewPathfinder(roads),
		spawner:    newSpawnController(cfg.SpawnInterval, cfg.CornerSize),
		rnd:        rand.New(rand.NewPCG(cfg.Seed1, cfg.Seed2)),
		running:    true,
	}
}

func (m *Model) allocID() int {
	id := m.nextID
	m.nextID++
	return id
}

// AddRoad registers a road segment at pos.
func (m *Model) AddRoad(pos Coord, dir Direction, decorative bool) *RoadSegment {
	seg := &RoadSegment{id: m.allocID(), Pos: pos, Dir: dir, Decorative: decorative}
	err := m.grid.Place(seg, pos)
	assert.Assert(err == nil, "road placed out of bounds")
	m.segments = append(m.segments, seg)
	return seg
}

// AddLight registers a traffic light at pos with its starting state
// and cycle length.
func (m *Model) AddLight(pos Coord, open bool, cycle int) *TrafficLight {
	l := &TrafficLight{id: m.allocID(), Pos: pos, Open: open, Cycle: cycle}
	err := m.grid.Place(l, pos)
	assert.Assert(err == nil, "light placed out of bounds")
	m.lights = append(m.lights, l)
	return l
}

// AddObstacle registers an obstacle at pos.
func (m *Model) AddObstacle(pos Coord) *Obstacle {
	o := &Obstacle{id: m.allocID(), Pos: pos}
	err := m.grid.Place(o, pos)
	assert.Assert(err == nil, "obstacle placed out of bounds")
	m.obstacles = append(m.obstacles, o)
	return o
}

// AddDestination registers a destination at pos.
func (m *Model) AddDestination(pos Coord) *Destination {
	d := &Destination{id: m.allocID(), Pos: pos}
	err := m.grid.Place(d, pos)
	assert.Assert(err == nil, "destination placed out of bounds")
	m.destinations = append(m.destinations, d)
	return d
}

// AddCar places a new car at pos heading for dest and runs its first
// route calculation immediately, mirroring a spawn.
func (m *Model) AddCar(pos Coord, dest *Destination) (*Car, error) {
	assert.AssertNotNil(dest)
	if !m.grid.InBounds(pos) {
		return nil, &BoundsError{Coord: pos, Width: m.grid.Width(), Height: m.grid.Height()}
	}
	if m.grid.CarAt(pos) != nil {
		return nil, errCellOccupied(pos)
	}

	c := &Car{
		id:    m.allocID(),
		pos:   pos,
		dest:  dest,
		state: Calculating,
	}
	c.dir = m.roads.RoadDirection(pos)
	c.nextDir = c.dir
	c.recordVisit()

	err := m.grid.Place(c, pos)
	assert.Assert(err == nil, "spawn cell out of bounds")
	m.cars = append(m.cars, c)
	m.metrics.TotalSpawned++

	c.calculate(m, nil)
	return c, nil
}

// Step advances the simulation exactly one tick and reports whether
// the run is still active.
func (m *Model) Step() bool {
	if !m.running {
		return false
	}
	m.tick++
	m.metrics.Tick = m.tick
	m.metrics.SpawnedThisTick = 0
	m.metrics.ArrivedThisTick = 0
	m.metrics.JamsThisTick = 0

	if m.spawner.due(m.tick) {
		spawned := m.spawner.spawn(m)
		m.metrics.SpawnedThisTick = spawned
		if spawned == 0 {
			m.logger.Info("spawn cycle placed no cars, finishing run",
				"tick", m.tick,
				"spawned", m.metrics.TotalSpawned,
				"arrived", m.metrics.TotalArrived,
				"inTransit", len(m.cars),
			)
			m.running = false
			m.metrics.LiveCars = len(m.cars)
			return false
		}
	}

	liveBefore := len(m.cars)
	jamsBefore := m.metrics.TotalJams

	// Lights first, then cars in a fresh shuffle. A car acting early
	// in the pass changes the board seen by cars acting later; this
	// order dependence is intentional and seed-deterministic.
	for _, l := range m.lights {
		l.step(m.tick)
	}

	order := make([]*Car, len(m.cars))
	copy(order, m.cars)
	m.rnd.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	for _, c := range order {
		if c.dead {
			continue
		}
		c.step(m.tick, m)
	}

	m.compact()

	m.metrics.LiveCars = len(m.cars)
	m.metrics.ArrivedThisTick = liveBefore - len(m.cars)
	m.metrics.JamsThisTick = m.metrics.TotalJams - jamsBefore
	return m.running
}

// compact drops dead cars from the live registry between ticks so the
// stepping pass never mutates the slice it iterates.
func (m *Model) compact() {
	live := m.cars[:0]
	for _, c := range m.cars {
		if !c.dead {
			live = append(live, c)
		}
	}
	for i := len(live); i < len(m.cars); i++ {
		m.cars[i] = nil
	}
	m.cars = live
}

func (m *Model) Tick() int                 { return m.tick }
func (m *Model) Running() bool             { return m.running }
func (m *Model) Width() int                { return m.grid.Width() }
func (m *Model) Height() int               { return m.grid.Height() }
func (m *Model) Metrics() Metrics          { return m.metrics }
func (m *Model) Grid() *Grid               { return m.grid }
func (m *Model) RoadNetwork() *RoadNetwork { return m.roads }

// Cars returns the live cars in registry order.
func (m *Model) Cars() []*Car {
	out := make([]*Car, len(m.cars))
	copy(out, m.cars)
	return out
}

func (m *Model) Lights() []*TrafficLight {
	out := make([]*TrafficLight, len(m.lights))
	copy(out, m.lights)
	return out
}

func (m *Model) Destinations() []*Destination {
	out := make([]*Destination, len(m.destinations))
	copy(out, m.destinations)
	return out
}

// CarView is the per-tick read-only projection of a live car.
type CarView struct {
	ID      int    `json:"id"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Dir     string `json:"dir"`
	NextDir string `json:"nextDir"`
	State   string `json:"state"`
	Steps   int    `json:"steps"`
}

func (m *Model) CarViews() []CarView {
	views := make([]CarView, 0, len(m.cars))
	for _, c := range m.cars {
		views = append(views, CarView{
			ID:      c.id,
			X:       c.pos.X,
			Y:       c.pos.Y,
			Dir:     c.dir.String(),
			NextDir: c.nextDir.String(),
			State:   c.state.String(),
			Steps:   c.stepsTaken,
		})
	}
	return views
}

// LightView is the read-only projection of a traffic light.
type LightView struct {
	ID    int  `json:"id"`
	X     int  `json:"x"`
	Y     int  `json:"y"`
	Open  bool `json:"open"`
	Cycle int  `json:"cycle"`
}

func (m *Model) LightViews() []LightView {
	views := make([]LightView, 0, len(m.lights))
	for _, l := range m.lights {
		views = append(views, LightView{ID: l.id, X: l.Pos.X, Y: l.Pos.Y, Open: l.Open, Cycle: l.Cycle})
	}
	return views
}

// EntityView is the read-only projection of a fixed entity.
type EntityView struct {
	ID         int    `json:"id"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	Dir        string `json:"dir,omitempty"`
	Decorative bool   `json:"decorative,omitempty"`
}

func (m *Model) RoadViews() []EntityView {
	views := make([]EntityView, 0, len(m.segments))
	for _, s := range m.segments {
		views = append(views, EntityView{ID: s.id, X: s.Pos.X, Y: s.Pos.Y, Dir: s.Dir.String(), Decorative: s.Decorative})
	}
	return views
}

func (m *Model) ObstacleViews() []EntityView {
	views := make([]EntityView, 0, len(m.obstacles))
	for _, o := range m.obstacles {
		views = append(views, EntityView{ID: o.id, X: o.Pos.X, Y: o.Pos.Y})
	}
	return views
}

func (m *Model) DestinationViews() []EntityView {
	views := make([]EntityView, 0, len(m.destinations))
	for _, d := range m.destinations {
		views = append(views, EntityView{ID: d.id, X: d.Pos.X, Y: d.Pos.Y})
	}
	return views
}
