package sim

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(width, height int, cfg Config) *Model {
	return NewModel(width, height, cfg, log.New(io.Discard))
}

func noSpawnConfig() Config {
	cfg := DefaultConfig()
	cfg.SpawnInterval = 0
	return cfg
}

func TestGridBounds(t *testing.T) {
	g := NewGrid(4, 3)

	assert.True(t, g.InBounds(Coord{X: 0, Y: 0}))
	assert.True(t, g.InBounds(Coord{X: 3, Y: 2}))
	assert.False(t, g.InBounds(Coord{X: 4, Y: 0}))
	assert.False(t, g.InBounds(Coord{X: 0, Y: 3}))
	assert.False(t, g.InBounds(Coord{X: -1, Y: 0}))

	assert.Nil(t, g.OccupantsAt(Coord{X: 9, Y: 9}))
}

func TestGridPlaceRemove(t *testing.T) {
	m := newTestModel(4, 4, noSpawnConfig())
	g := m.Grid()

	seg := m.AddRoad(Coord{X: 1, Y: 1}, Right, false)
	light := m.AddLight(Coord{X: 1, Y: 1}, true, 5)

	require.Len(t, g.OccupantsAt(Coord{X: 1, Y: 1}), 2)
	assert.Equal(t, seg, g.RoadAt(Coord{X: 1, Y: 1}))
	assert.Equal(t, light, g.LightAt(Coord{X: 1, Y: 1}))
	assert.Nil(t, g.CarAt(Coord{X: 1, Y: 1}))

	require.NoError(t, g.Remove(light, Coord{X: 1, Y: 1}))
	assert.Nil(t, g.LightAt(Coord{X: 1, Y: 1}))
	assert.Equal(t, seg, g.RoadAt(Coord{X: 1, Y: 1}))

	// Removing an occupant that is not there is an error.
	assert.Error(t, g.Remove(light, Coord{X: 1, Y: 1}))
	assert.Error(t, g.Remove(seg, Coord{X: 2, Y: 2}))
}

func TestGridPlaceOutOfBounds(t *testing.T) {
	g := NewGrid(2, 2)
	o := &Obstacle{id: 1, Pos: Coord{X: 5, Y: 5}}

	err := g.Place(o, Coord{X: 5, Y: 5})
	var boundsErr *BoundsError
	require.ErrorAs(t, err, &boundsErr)
	assert.Equal(t, Coord{X: 5, Y: 5}, boundsErr.Coord)
}

func TestGridTypedLookups(t *testing.T) {
	m := newTestModel(3, 3, noSpawnConfig())
	g := m.Grid()

	m.AddObstacle(Coord{X: 0, Y: 0})
	m.AddDestination(Coord{X: 1, Y: 0})

	assert.True(t, g.HasObstacle(Coord{X: 0, Y: 0}))
	assert.False(t, g.HasObstacle(Coord{X: 1, Y: 0}))
	assert.NotNil(t, g.DestinationAt(Coord{X: 1, Y: 0}))
	assert.Nil(t, g.DestinationAt(Coord{X: 0, Y: 0}))
}
