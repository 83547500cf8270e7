package sim

// Direction is one of the four cardinal traffic-flow directions.
type Direction uint8

const (
	Right Direction = iota
	Left
	Up
	Down
)

func (d Direction) String() string {
	switch d {
	case Right:
		return "Right"
	case Left:
		return "Left"
	case Up:
		return "Up"
	case Down:
		return "Down"
	}
	return "Right"
}

// Delta returns the unit displacement of a straight move in d.
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case Right:
		return 1, 0
	case Left:
		return -1, 0
	case Up:
		return 0, 1
	}
	return 0, -1
}

// Coord is a grid cell coordinate. Y grows northward.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Coord) Add(dx, dy int) Coord {
	return Coord{X: c.X + dx, Y: c.Y + dy}
}

// Manhattan is the L1 distance to o.
func (c Coord) Manhattan(o Coord) int {
	return abs(c.X-o.X) + abs(c.Y-o.Y)
}

// Adjacent reports whether o is a different cell reachable in a single
// move: at most one cell away on each axis.
func (c Coord) Adjacent(o Coord) bool {
	return c != o && abs(c.X-o.X) <= 1 && abs(c.Y-o.Y) <= 1
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

type relMove struct {
	dx, dy   int
	cost     float64
	diagonal bool
}

// forwardMoves lists the straight-forward and the two diagonal-forward
// displacements for a flow direction, straight first. Lateral and
// reverse moves are never candidates. Diagonals cost more than
// straight moves so routes prefer staying in lane.
func forwardMoves(d Direction) [3]relMove {
	switch d {
	case Right:
		return [3]relMove{{1, 0, straightCost, false}, {1, 1, diagonalCost, true}, {1, -1, diagonalCost, true}}
	case Left:
		return [3]relMove{{-1, 0, straightCost, false}, {-1, 1, diagonalCost, true}, {-1, -1, diagonalCost, true}}
	case Up:
		return [3]relMove{{0, 1, straightCost, false}, {1, 1, diagonalCost, true}, {-1, 1, diagonalCost, true}}
	}
	return [3]relMove{{0, -1, straightCost, false}, {1, -1, diagonalCost, true}, {-1, -1, diagonalCost, true}}
}

// moveDirection classifies a displacement as the cardinal direction of
// its dominant component. Perfect diagonals resolve to the vertical
// component.
func moveDirection(from, to Coord) Direction {
	dx := to.X - from.X
	dy := to.Y - from.Y
	if dx != 0 && dy == 0 {
		if dx > 0 {
			return Right
		}
		return Left
	}
	if dy != 0 && dx == 0 {
		if dy > 0 {
			return Up
		}
		return Down
	}
	if abs(dx) > abs(dy) {
		if dx > 0 {
			return Right
		}
		return Left
	}
	if dy > 0 {
		return Up
	}
	return Down
}
