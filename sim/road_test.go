package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidRoad(t *testing.T) {
	m := newTestModel(5, 5, noSpawnConfig())
	roads := m.RoadNetwork()

	m.AddRoad(Coord{X: 0, Y: 0}, Right, false)
	m.AddRoad(Coord{X: 1, Y: 0}, Right, true)
	m.AddLight(Coord{X: 2, Y: 0}, true, 5)
	m.AddDestination(Coord{X: 3, Y: 0})
	m.AddObstacle(Coord{X: 4, Y: 0})

	assert.True(t, roads.IsValidRoad(Coord{X: 0, Y: 0}))
	assert.False(t, roads.IsValidRoad(Coord{X: 1, Y: 0}), "decorative road is not traffic-bearing")
	assert.True(t, roads.IsValidRoad(Coord{X: 2, Y: 0}))
	assert.True(t, roads.IsValidRoad(Coord{X: 3, Y: 0}))
	assert.False(t, roads.IsValidRoad(Coord{X: 4, Y: 0}))
	assert.False(t, roads.IsValidRoad(Coord{X: 0, Y: 1}), "empty cell")
	assert.False(t, roads.IsValidRoad(Coord{X: -1, Y: 0}))
}

func TestRoadDirectionFromSegment(t *testing.T) {
	m := newTestModel(3, 3, noSpawnConfig())
	m.AddRoad(Coord{X: 1, Y: 1}, Left, false)
	assert.Equal(t, Left, m.RoadNetwork().RoadDirection(Coord{X: 1, Y: 1}))
}

func TestRoadDirectionInference(t *testing.T) {
	t.Run("majority wins", func(t *testing.T) {
		m := newTestModel(5, 5, noSpawnConfig())
		m.AddLight(Coord{X: 2, Y: 2}, true, 5)
		m.AddRoad(Coord{X: 2, Y: 3}, Up, false)
		m.AddRoad(Coord{X: 2, Y: 1}, Up, false)
		m.AddRoad(Coord{X: 3, Y: 2}, Right, false)

		assert.Equal(t, Up, m.RoadNetwork().RoadDirection(Coord{X: 2, Y: 2}))
	})

	t.Run("tie breaks on scan order", func(t *testing.T) {
		m := newTestModel(5, 5, noSpawnConfig())
		m.AddLight(Coord{X: 2, Y: 2}, true, 5)
		// North neighbor scans before east.
		m.AddRoad(Coord{X: 2, Y: 3}, Down, false)
		m.AddRoad(Coord{X: 3, Y: 2}, Right, false)

		assert.Equal(t, Down, m.RoadNetwork().RoadDirection(Coord{X: 2, Y: 2}))
	})

	t.Run("no road neighbors defaults Right", func(t *testing.T) {
		m := newTestModel(5, 5, noSpawnConfig())
		m.AddDestination(Coord{X: 2, Y: 2})
		assert.Equal(t, Right, m.RoadNetwork().RoadDirection(Coord{X: 2, Y: 2}))
	})
}

func TestIsMoveAllowed(t *testing.T) {
	m := newTestModel(5, 5, noSpawnConfig())
	roads := m.RoadNetwork()
	m.AddRoad(Coord{X: 2, Y: 2}, Right, false)

	from := Coord{X: 2, Y: 2}
	assert.True(t, roads.IsMoveAllowed(from, Coord{X: 3, Y: 2}))
	assert.True(t, roads.IsMoveAllowed(from, Coord{X: 3, Y: 3}))
	assert.True(t, roads.IsMoveAllowed(from, Coord{X: 3, Y: 1}))
	assert.False(t, roads.IsMoveAllowed(from, Coord{X: 1, Y: 2}), "reversing the flow axis")

	m.AddRoad(Coord{X: 2, Y: 3}, Up, false)
	fromUp := Coord{X: 2, Y: 3}
	assert.True(t, roads.IsMoveAllowed(fromUp, Coord{X: 2, Y: 4}))
	assert.True(t, roads.IsMoveAllowed(fromUp, Coord{X: 1, Y: 4}))
	assert.False(t, roads.IsMoveAllowed(fromUp, Coord{X: 2, Y: 2}))
}

func TestMoveDirection(t *testing.T) {
	from := Coord{X: 2, Y: 2}
	assert.Equal(t, Right, moveDirection(from, Coord{X: 3, Y: 2}))
	assert.Equal(t, Left, moveDirection(from, Coord{X: 1, Y: 2}))
	assert.Equal(t, Up, moveDirection(from, Coord{X: 2, Y: 3}))
	assert.Equal(t, Down, moveDirection(from, Coord{X: 2, Y: 1}))
	// Perfect diagonals resolve to the vertical component.
	assert.Equal(t, Up, moveDirection(from, Coord{X: 3, Y: 3}))
	assert.Equal(t, Down, moveDirection(from, Coord{X: 1, Y: 1}))
}
