package sim

// Occupant is the closed set of entities that can sit in a grid cell.
// The unexported method seals the interface so dispatch is always a
// type switch over a known set of variants.
type Occupant interface {
	ID() int
	occupant()
}

// RoadSegment fixes a traffic-flow direction on a cell. Decorative
// segments never gate movement legality; they only feed orientation
// lookups for rendering.
type RoadSegment struct {
	id         int
	Pos        Coord
	Dir        Direction
	Decorative bool
}

func (r *RoadSegment) ID() int { return r.id }
func (*RoadSegment) occupant() {}

// TrafficLight is a periodic binary gate. Open means passable.
type TrafficLight struct {
	id    int
	Pos   Coord
	Open  bool
	Cycle int
}

func (l *TrafficLight) ID() int { return l.id }
func (*TrafficLight) occupant() {}

// step flips the light on cycle boundaries. The scheduler passes the
// tick in so lights never read ambient model state.
func (l *TrafficLight) step(tick int) {
	if l.Cycle > 0 && tick%l.Cycle == 0 {
		l.Open = !l.Open
	}
}

// Obstacle blocks traversal and pathfinding through its cell.
type Obstacle struct {
	id  int
	Pos Coord
}

func (o *Obstacle) ID() int { return o.id }
func (*Obstacle) occupant() {}

// Destination is a terminal goal cell. Several cars may target the
// same destination at once; destinations outlive every car.
type Destination struct {
	id  int
	Pos Coord
}

func (d *Destination) ID() int { return d.id }
func (*Destination) occupant() {}
