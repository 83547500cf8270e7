package sim

import "math/rand/v2"

// CarState tags the behavioral state of a car.
type CarState uint8

const (
	Calculating CarState = iota
	Moving
	WaitingRedLight
	WaitingTraffic
	Jammed
	InLoop
	AtDestination
)

func (s CarState) String() string {
	switch s {
	case Calculating:
		return "calculating"
	case Moving:
		return "moving"
	case WaitingRedLight:
		return "waitingRedLight"
	case WaitingTraffic:
		return "waitingTraffic"
	case Jammed:
		return "jammed"
	case InLoop:
		return "inLoop"
	case AtDestination:
		return "atDestination"
	}
	return "unknown"
}

const (
	loopHistorySize   = 20
	loopTriggerVisits = 3
)

// Car is a vehicle navigating from its spawn cell to a destination.
// A car mutates only during its own step in the scheduler's pass.
type Car struct {
	id   int
	pos  Coord
	dest *Destination

	path    []Coord
	pathIdx int

	dir     Direction
	nextDir Direction

	state CarState
	dead  bool

	stepsTaken   int
	blockedTicks int
	jamCount     int
	lightsSeen   int

	// Ring buffer of recently visited coordinates; revisiting the
	// current cell loopTriggerVisits times within it flags a loop.
	history  [loopHistorySize]Coord
	histLen  int
	histNext int
}

func (c *Car) ID() int                   { return c.id }
func (*Car) occupant()                   {}
func (c *Car) Pos() Coord                { return c.pos }
func (c *Car) State() CarState           { return c.state }
func (c *Car) Direction() Direction      { return c.dir }
func (c *Car) NextDirection() Direction  { return c.nextDir }
func (c *Car) Destination() *Destination { return c.dest }
func (c *Car) StepsTaken() int           { return c.stepsTaken }
func (c *Car) JamCount() int             { return c.jamCount }

// Path returns a copy of the remaining planned route.
func (c *Car) Path() []Coord {
	if c.pathIdx >= len(c.path) {
		return nil
	}
	rest := make([]Coord, len(c.path)-c.pathIdx)
	copy(rest, c.path[c.pathIdx:])
	return rest
}

// step runs one decision of the state machine. The scheduler passes
// the tick and the world handle in; cars hold no ambient references.
func (c *Car) step(tick int, m *Model) {
	if c.state == AtDestination {
		return
	}
	if c.pos == c.dest.Pos {
		c.arrive(m)
		return
	}

	switch c.state {
	case Calculating:
		c.calculate(m, nil)
	case Moving:
		c.stepMoving(m)
	case WaitingRedLight:
		c.stepWaitingRed(m)
	case WaitingTraffic:
		c.stepWaitingTraffic(m)
	case Jammed:
		c.stepJammed(m)
	case InLoop:
		c.stepInLoop(m)
	}
}

// calculate replans from the current cell. Failure is not an error:
// the car waits in traffic and counts a jam encounter.
func (c *Car) calculate(m *Model, avoid map[Coord]struct{}) {
	opts := PathOptions{OccupiedPenalty: occupiedPenalty}
	if c.blockedTicks >= m.cfg.Patience {
		opts.OccupiedPenalty = relaxedOccupiedPenalty
	}
	if avoid != nil {
		opts.Avoid = avoid
		opts.AvoidPenalty = avoidPenalty
	}

	path := m.pathfinder.Find(c.pos, c.dest.Pos, opts)
	if len(path) == 0 {
		c.state = WaitingTraffic
		c.recordJam(m)
		return
	}
	c.path = path
	c.pathIdx = 0
	c.state = Moving
	c.refreshNextDir()
}

func (c *Car) stepMoving(m *Model) {
	if c.pathIdx >= len(c.path) {
		c.calculate(m, nil)
		return
	}
	next := c.path[c.pathIdx]

	if l := m.grid.LightAt(next); l != nil && !l.Open {
		c.state = WaitingRedLight
		c.lightsSeen++
		return
	}

	if m.grid.CarAt(next) != nil {
		if c.tryLaneChange(m) {
			c.blockedTicks = 0
			if c.afterMove(m) {
				return
			}
			c.resumePath(m)
			return
		}
		c.blockedTicks++
		c.state = WaitingTraffic
		return
	}

	if c.tryMove(m, next) {
		c.pathIdx++
		c.blockedTicks = 0
		if c.afterMove(m) {
			return
		}
		c.state = Moving
		c.refreshNextDir()
		return
	}

	// The cell legality changed underfoot this tick.
	c.blockedTicks++
	c.state = WaitingTraffic
}

// stepWaitingRed re-checks the same path cell each tick and resumes
// without recomputation once the light opens. Light flips never
// invalidate an existing path.
func (c *Car) stepWaitingRed(m *Model) {
	if c.pathIdx >= len(c.path) {
		c.state = Calculating
		return
	}
	next := c.path[c.pathIdx]
	if l := m.grid.LightAt(next); l != nil && !l.Open {
		return
	}
	c.state = Moving
	c.stepMoving(m)
}

func (c *Car) stepWaitingTraffic(m *Model) {
	c.blockedTicks++
	if c.blockedTicks > m.cfg.Patience {
		c.state = Jammed
		return
	}
	c.retryForward(m)
}

// retryForward attempts the stored path cell when one exists, then
// falls back to following the road.
func (c *Car) retryForward(m *Model) {
	if c.pathIdx < len(c.path) {
		next := c.path[c.pathIdx]
		if l := m.grid.LightAt(next); l != nil && !l.Open {
			c.state = WaitingRedLight
			c.lightsSeen++
			return
		}
		if c.tryMove(m, next) {
			c.pathIdx++
			c.blockedTicks = 0
			if c.afterMove(m) {
				return
			}
			c.state = Moving
			c.refreshNextDir()
			return
		}
		if c.tryLaneChange(m) {
			c.blockedTicks = 0
			if c.afterMove(m) {
				return
			}
			c.resumePath(m)
			return
		}
		return
	}

	// No route: follow the road forward, staying in WaitingTraffic
	// until a replan succeeds or a loop is flagged.
	dir := m.roads.RoadDirection(c.pos)
	dx, dy := dir.Delta()
	if c.tryMove(m, c.pos.Add(dx, dy)) {
		c.blockedTicks = 0
		c.afterMove(m)
		return
	}
	if c.tryLaneChange(m) {
		c.blockedTicks = 0
		c.afterMove(m)
	}
}

// stepJammed rolls the escape chance and, when it hits, hops to a
// uniformly chosen free legal neighbor and replans from there.
func (c *Car) stepJammed(m *Model) {
	if !chance(m.rnd, m.cfg.JamChance) {
		return
	}

	dir := m.roads.RoadDirection(c.pos)
	var targets []Coord
	for _, mv := range forwardMoves(dir) {
		t := c.pos.Add(mv.dx, mv.dy)
		if !c.cellFree(m, t) {
			continue
		}
		targets = append(targets, t)
	}
	if len(targets) == 0 {
		return
	}

	t := targets[m.rnd.IntN(len(targets))]
	c.relocate(m, t)
	c.blockedTicks = 0
	c.recordJam(m)
	if c.afterMove(m) {
		return
	}
	c.calculate(m, nil)
}

// stepInLoop replans away from the cells the car has been cycling:
// every coordinate in the history gets a heavy penalty so the new
// route leaves the cycle.
func (c *Car) stepInLoop(m *Model) {
	avoid := make(map[Coord]struct{}, c.histLen)
	for i := 0; i < c.histLen; i++ {
		avoid[c.history[i]] = struct{}{}
	}
	c.histLen = 0
	c.histNext = 0
	c.recordVisit()
	c.calculate(m, avoid)
}

// tryMove relocates to next if it is free and legal at this instant.
// The re-check is mandatory: a car earlier in this tick's shuffle may
// have taken the cell since the path was planned.
func (c *Car) tryMove(m *Model, next Coord) bool {
	if !c.cellFree(m, next) {
		return false
	}
	c.relocate(m, next)
	return true
}

// resumePath re-aims the route cursor after a sidestep. The cell past
// the blocked one stays the target only while it is still a single
// legal move from the new lane; otherwise the car replans from where
// it now stands.
func (c *Car) resumePath(m *Model) {
	skip := c.pathIdx + 1
	if skip < len(c.path) && c.pos.Adjacent(c.path[skip]) && m.roads.IsMoveAllowed(c.pos, c.path[skip]) {
		c.pathIdx = skip
		c.state = Moving
		c.refreshNextDir()
		return
	}
	c.state = Calculating
}

// cellFree reports whether the car may relocate onto next this tick:
// a single cell away, drivable, along the flow, unoccupied, and not
// behind a red light.
func (c *Car) cellFree(m *Model, next Coord) bool {
	if !c.pos.Adjacent(next) {
		return false
	}
	if !m.roads.IsValidRoad(next) || !m.roads.IsMoveAllowed(c.pos, next) {
		return false
	}
	if m.grid.CarAt(next) != nil {
		return false
	}
	if l := m.grid.LightAt(next); l != nil && !l.Open {
		return false
	}
	return true
}

// tryLaneChange attempts the two diagonal-forward cells consistent
// with the flow at the current cell. A target must carry the same
// flow direction (or host a light or destination), be free, and have
// a free forward neighbor so the car does not merge into another
// stopped lane. Ties between the two diagonals break toward the one
// nearer the destination, then by scan order.
func (c *Car) tryLaneChange(m *Model) bool {
	dir := m.roads.RoadDirection(c.pos)
	moves := forwardMoves(dir)
	fdx, fdy := dir.Delta()

	best := Coord{}
	bestDist := -1
	for _, mv := range moves[1:] {
		t := c.pos.Add(mv.dx, mv.dy)
		if !c.cellFree(m, t) {
			continue
		}
		if seg := m.grid.RoadAt(t); seg != nil && seg.Dir != dir {
			continue
		}
		fwd := t.Add(fdx, fdy)
		if !m.grid.InBounds(fwd) || m.grid.CarAt(fwd) != nil {
			continue
		}
		if d := t.Manhattan(c.dest.Pos); bestDist < 0 || d < bestDist {
			best = t
			bestDist = d
		}
	}
	if bestDist < 0 {
		return false
	}
	c.relocate(m, best)
	return true
}

// relocate performs the physical move and per-move bookkeeping.
func (c *Car) relocate(m *Model, next Coord) {
	m.grid.move(c, c.pos, next)
	c.updateDirection(next)
	c.pos = next
	c.stepsTaken++
	c.recordVisit()
}

// updateDirection reorients the car from the move it is making.
// Diagonal lane changes keep the current heading.
func (c *Car) updateDirection(next Coord) {
	if next.X == c.pos.X || next.Y == c.pos.Y {
		c.dir = moveDirection(c.pos, next)
	}
	c.nextDir = c.dir
}

// refreshNextDir recomputes the intended next direction from the path
// tail, for the read-only views. Diagonal tail moves keep the current
// heading.
func (c *Car) refreshNextDir() {
	if c.pathIdx >= len(c.path) {
		c.nextDir = c.dir
		return
	}
	next := c.path[c.pathIdx]
	if next.X != c.pos.X && next.Y != c.pos.Y {
		c.nextDir = c.dir
		return
	}
	c.nextDir = moveDirection(c.pos, next)
}

// afterMove resolves arrival and loop detection after any relocation.
// It reports whether the car's state was decided here.
func (c *Car) afterMove(m *Model) bool {
	if c.pos == c.dest.Pos {
		c.arrive(m)
		return true
	}
	if c.visitCount(c.pos) >= loopTriggerVisits {
		c.state = InLoop
		return true
	}
	return false
}

// arrive removes the car from the world. The per-car cumulative
// totals fold into the model exactly once here; the scheduler
// compacts the dead slot between ticks.
func (c *Car) arrive(m *Model) {
	if c.state == AtDestination {
		return
	}
	c.state = AtDestination
	c.dead = true
	err := m.grid.Remove(c, c.pos)
	if err != nil {
		m.logger.Error("arrived car missing from grid", "car", c.id, "err", err)
	}
	m.metrics.TotalArrived++
	m.metrics.TotalSteps += c.stepsTaken
	m.metrics.TotalLights += c.lightsSeen
}

func (c *Car) recordJam(m *Model) {
	c.jamCount++
	m.metrics.TotalJams++
}

func (c *Car) recordVisit() {
	c.history[c.histNext] = c.pos
	c.histNext = (c.histNext + 1) % loopHistorySize
	if c.histLen < loopHistorySize {
		c.histLen++
	}
}

func (c *Car) visitCount(pos Coord) int {
	n := 0
	for i := 0; i < c.histLen; i++ {
		if c.history[i] == pos {
			n++
		}
	}
	return n
}

func chance(rnd *rand.Rand, p float64) bool {
	return rnd.Float64() < p
}
