package sim

import (
	"fmt"

	"github.com/tifye/kousaten/assert"
)

// BoundsError reports a coordinate query outside the grid.
type BoundsError struct {
	Coord         Coord
	Width, Height int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("coordinate (%d,%d) outside %dx%d grid", e.Coord.X, e.Coord.Y, e.Width, e.Height)
}

func errCellOccupied(c Coord) error {
	return fmt.Errorf("cell (%d,%d) already holds a car", c.X, c.Y)
}

type cell struct {
	pos       Coord
	occupants []Occupant
}

// Grid is the dense cell array every entity lives on. Cells hold small
// unordered sets of occupant references; exclusivity of cars is a
// cooperative invariant enforced by callers, not by the structure.
type Grid struct {
	width, height int
	cells         []cell
}

func NewGrid(width, height int) *Grid {
	assert.Assert(width > 0 && height > 0, "grid dimensions must be positive")
	g := &Grid{
		width:  width,
		height: height,
		cells:  make([]cell, width*height),
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g.cells[y*width+x].pos = Coord{X: x, Y: y}
		}
	}
	return g
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

func (g *Grid) InBounds(c Coord) bool {
	return c.X >= 0 && c.X < g.width && c.Y >= 0 && c.Y < g.height
}

func (g *Grid) cellAt(c Coord) (*cell, error) {
	if !g.InBounds(c) {
		return nil, &BoundsError{Coord: c, Width: g.width, Height: g.height}
	}
	return &g.cells[c.Y*g.width+c.X], nil
}

// OccupantsAt returns the occupant set at c, nil when c is out of
// bounds. Callers that need the distinction should check InBounds
// first.
func (g *Grid) OccupantsAt(c Coord) []Occupant {
	cl, err := g.cellAt(c)
	if err != nil {
		return nil
	}
	return cl.occupants
}

// Place adds o to the cell at c.
func (g *Grid) Place(o Occupant, c Coord) error {
	assert.AssertNotNil(o)
	cl, err := g.cellAt(c)
	if err != nil {
		return err
	}
	cl.occupants = append(cl.occupants, o)
	return nil
}

// Remove drops o from the cell at c. Removing an occupant that is not
// present is an error; it means some mover lost track of its cell.
func (g *Grid) Remove(o Occupant, c Coord) error {
	assert.AssertNotNil(o)
	cl, err := g.cellAt(c)
	if err != nil {
		return err
	}
	for i, oc := range cl.occupants {
		if oc == o {
			last := len(cl.occupants) - 1
			cl.occupants[i] = cl.occupants[last]
			cl.occupants[last] = nil
			cl.occupants = cl.occupants[:last]
			return nil
		}
	}
	return fmt.Errorf("occupant %d not present at (%d,%d)", o.ID(), c.X, c.Y)
}

// move relocates o between cells, asserting both halves succeed.
func (g *Grid) move(o Occupant, from, to Coord) {
	err := g.Remove(o, from)
	assert.Assert(err == nil, "mover was not where it thought it was")
	err = g.Place(o, to)
	assert.Assert(err == nil, "move target out of bounds")
}

// CarAt returns the car occupying c, or nil.
func (g *Grid) CarAt(c Coord) *Car {
	for _, o := range g.OccupantsAt(c) {
		if car, ok := o.(*Car); ok {
			return car
		}
	}
	return nil
}

// LightAt returns the traffic light at c, or nil.
func (g *Grid) LightAt(c Coord) *TrafficLight {
	for _, o := range g.OccupantsAt(c) {
		if l, ok := o.(*TrafficLight); ok {
			return l
		}
	}
	return nil
}

// RoadAt returns the road segment at c, or nil.
func (g *Grid) RoadAt(c Coord) *RoadSegment {
	for _, o := range g.OccupantsAt(c) {
		if r, ok := o.(*RoadSegment); ok {
			return r
		}
	}
	return nil
}

// DestinationAt returns the destination at c, or nil.
func (g *Grid) DestinationAt(c Coord) *Destination {
	for _, o := range g.OccupantsAt(c) {
		if d, ok := o.(*Destination); ok {
			return d
		}
	}
	return nil
}

// HasObstacle reports whether c holds an obstacle.
func (g *Grid) HasObstacle(c Coord) bool {
	for _, o := range g.OccupantsAt(c) {
		if _, ok := o.(*Obstacle); ok {
			return true
		}
	}
	return false
}
