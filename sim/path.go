package sim

import "container/heap"

const (
	straightCost = 1.0
	diagonalCost = 1.4

	// lightCycleWeight scales a light's cycle length into a crossing
	// penalty: slow lights are worth routing around.
	lightCycleWeight = 0.2

	// occupiedPenalty discourages routing through cells that hold a
	// car right now. relaxedOccupiedPenalty replaces it once the
	// searching car has been stuck long enough that an occupied but
	// necessary route beats not moving at all.
	occupiedPenalty        = 80.0
	relaxedOccupiedPenalty = 20.0

	avoidPenalty = 200.0

	// expansionFactor bounds the search at expansionFactor cells of
	// work per grid cell, so exhaustion terminates instead of looping.
	expansionFactor = 25
)

// PathOptions tunes a single search.
type PathOptions struct {
	// OccupiedPenalty is added for cells currently holding a car.
	OccupiedPenalty float64
	// Avoid adds AvoidPenalty to every listed cell.
	Avoid        map[Coord]struct{}
	AvoidPenalty float64
}

// Pathfinder runs A* over direction-constrained moves: from any cell
// only the straight-forward and two diagonal-forward neighbors of the
// resolved flow direction are successors.
type Pathfinder struct {
	roads *RoadNetwork
}

func NewPathfinder(r *RoadNetwork) *Pathfinder {
	return &Pathfinder{roads: r}
}

type searchNode struct {
	pos Coord
	f   float64
	seq int
}

// openQueue orders by (f, insertion sequence) so tie-breaking is
// deterministic and identical to insertion order.
type openQueue []searchNode

func (q openQueue) Len() int { return len(q) }
func (q openQueue) Less(i, j int) bool {
	if q[i].f != q[j].f {
		return q[i].f < q[j].f
	}
	return q[i].seq < q[j].seq
}
func (q openQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *openQueue) Push(x any) { *q = append(*q, x.(searchNode)) }
func (q *openQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Find returns the cell sequence from start (exclusive) to goal
// (inclusive), or nil when no route exists within the expansion
// budget. Exhaustion is not an error; callers fall back to road
// following.
func (p *Pathfinder) Find(start, goal Coord, opts PathOptions) []Coord {
	if start == goal {
		return []Coord{goal}
	}
	if !p.roads.IsValidRoad(goal) {
		return nil
	}

	grid := p.roads.grid
	budget := expansionFactor * grid.Width() * grid.Height()

	open := &openQueue{}
	heap.Init(open)
	gScore := map[Coord]float64{start: 0}
	cameFrom := map[Coord]Coord{}
	closed := map[Coord]struct{}{}

	seq := 0
	heap.Push(open, searchNode{pos: start, f: float64(start.Manhattan(goal))})

	for open.Len() > 0 && budget > 0 {
		budget--
		node := heap.Pop(open).(searchNode)
		if node.pos == goal {
			return reconstruct(cameFrom, start, goal)
		}
		if _, done := closed[node.pos]; done {
			continue
		}
		closed[node.pos] = struct{}{}

		dir := p.roads.RoadDirection(node.pos)
		for _, mv := range forwardMoves(dir) {
			nb := node.pos.Add(mv.dx, mv.dy)
			if _, done := closed[nb]; done {
				continue
			}
			if !p.roads.IsValidRoad(nb) || !p.roads.IsMoveAllowed(node.pos, nb) {
				continue
			}

			tentative := gScore[node.pos] + mv.cost + p.cellWeight(nb, opts)
			if old, seen := gScore[nb]; seen && tentative >= old {
				continue
			}
			gScore[nb] = tentative
			cameFrom[nb] = node.pos
			seq++
			heap.Push(open, searchNode{
				pos: nb,
				f:   tentative + float64(nb.Manhattan(goal)),
				seq: seq,
			})
		}
	}
	return nil
}

// cellWeight is the congestion cost of entering a cell on top of the
// base move cost. Destination cells are never penalized.
func (p *Pathfinder) cellWeight(c Coord, opts PathOptions) float64 {
	grid := p.roads.grid
	weight := 0.0

	if _, avoided := opts.Avoid[c]; avoided {
		weight += opts.AvoidPenalty
	}

	isDest := false
	var light *TrafficLight
	hasCar := false
	for _, o := range grid.OccupantsAt(c) {
		switch v := o.(type) {
		case *TrafficLight:
			light = v
		case *Destination:
			isDest = true
		case *Car:
			hasCar = true
		}
	}

	if light != nil {
		weight += float64(light.Cycle) * lightCycleWeight
	}
	if hasCar && !isDest {
		weight += opts.OccupiedPenalty
	}
	return weight
}

func reconstruct(cameFrom map[Coord]Coord, start, goal Coord) []Coord {
	var path []Coord
	for cur := goal; cur != start; cur = cameFrom[cur] {
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
