package sim

// RoadNetwork answers direction and legality queries over a grid.
type RoadNetwork struct {
	grid *Grid
}

func NewRoadNetwork(g *Grid) *RoadNetwork {
	return &RoadNetwork{grid: g}
}

// IsValidRoad reports whether a car may ever occupy c: in bounds, no
// obstacle, and hosting at least one of a road segment, a traffic
// light, or a destination.
func (r *RoadNetwork) IsValidRoad(c Coord) bool {
	if !r.grid.InBounds(c) {
		return false
	}
	hasInfra := false
	for _, o := range r.grid.OccupantsAt(c) {
		switch v := o.(type) {
		case *Obstacle:
			return false
		case *RoadSegment:
			if !v.Decorative {
				hasInfra = true
			}
		case *TrafficLight, *Destination:
			hasInfra = true
		}
	}
	return hasInfra
}

// neighborScan is the fixed N, S, E, W order used when inferring a
// direction for cells without a road segment. Majority-vote ties
// resolve to the direction seen first in this order.
var neighborScan = [4]Coord{{X: 0, Y: 1}, {X: 0, Y: -1}, {X: 1, Y: 0}, {X: -1, Y: 0}}

// RoadDirection resolves the traffic-flow direction at c. A road
// segment answers directly; lights and destinations take the majority
// direction among their orthogonal road neighbors; anything else
// defaults to Right. Every queryable cell resolves to exactly one
// direction.
func (r *RoadNetwork) RoadDirection(c Coord) Direction {
	if seg := r.grid.RoadAt(c); seg != nil {
		return seg.Dir
	}

	var counts [4]int
	var order []Direction
	for _, d := range neighborScan {
		nb := c.Add(d.X, d.Y)
		seg := r.grid.RoadAt(nb)
		if seg == nil {
			continue
		}
		if counts[seg.Dir] == 0 {
			order = append(order, seg.Dir)
		}
		counts[seg.Dir]++
	}

	best := Right
	bestCount := 0
	for _, d := range order {
		if counts[d] > bestCount {
			best = d
			bestCount = counts[d]
		}
	}
	return best
}

// IsMoveAllowed rejects displacements that reverse the flow axis at
// from. Straight and diagonal-forward moves pass; a move whose
// flow-axis component opposes the road direction does not.
func (r *RoadNetwork) IsMoveAllowed(from, to Coord) bool {
	dx := to.X - from.X
	dy := to.Y - from.Y
	switch r.RoadDirection(from) {
	case Right:
		return dx >= 0
	case Left:
		return dx <= 0
	case Up:
		return dy >= 0
	default:
		return dy <= 0
	}
}
