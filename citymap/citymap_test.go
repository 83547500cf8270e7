package citymap

import (
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tifye/kousaten/sim"
)

func testConfig() sim.Config {
	cfg := sim.DefaultConfig()
	cfg.SpawnInterval = 0
	return cfg
}

func TestParsePlacesEntities(t *testing.T) {
	const city = `>>v
#Ds
^<N`
	m, err := Parse(strings.NewReader(city), DefaultSymbols(), testConfig(), log.New(io.Discard))
	require.NoError(t, err)

	assert.Equal(t, 3, m.Width())
	assert.Equal(t, 3, m.Height())

	// Row 0 of the file is the top of the city.
	require.NotNil(t, m.Grid().RoadAt(sim.Coord{X: 0, Y: 2}))
	assert.Equal(t, sim.Right, m.Grid().RoadAt(sim.Coord{X: 0, Y: 2}).Dir)
	assert.Equal(t, sim.Down, m.Grid().RoadAt(sim.Coord{X: 2, Y: 2}).Dir)
	assert.Equal(t, sim.Up, m.Grid().RoadAt(sim.Coord{X: 0, Y: 0}).Dir)
	assert.Equal(t, sim.Left, m.Grid().RoadAt(sim.Coord{X: 1, Y: 0}).Dir)

	assert.True(t, m.Grid().HasObstacle(sim.Coord{X: 0, Y: 1}))
	assert.NotNil(t, m.Grid().DestinationAt(sim.Coord{X: 1, Y: 1}))

	light := m.Grid().LightAt(sim.Coord{X: 2, Y: 1})
	require.NotNil(t, light)
	assert.True(t, light.Open)
	assert.Equal(t, 7, light.Cycle)

	deco := m.Grid().RoadAt(sim.Coord{X: 2, Y: 0})
	require.NotNil(t, deco)
	assert.True(t, deco.Decorative)
}

func TestParseToleratesRaggedRowsAndUnknownGlyphs(t *testing.T) {
	const city = ">>>>\n>?\n"
	m, err := Parse(strings.NewReader(city), DefaultSymbols(), testConfig(), log.New(io.Discard))
	require.NoError(t, err)

	assert.Equal(t, 4, m.Width())
	assert.Equal(t, 2, m.Height())
	assert.NotNil(t, m.Grid().RoadAt(sim.Coord{X: 0, Y: 0}))
	assert.Nil(t, m.Grid().RoadAt(sim.Coord{X: 1, Y: 0}))
	assert.Nil(t, m.Grid().RoadAt(sim.Coord{X: 3, Y: 0}))
}

func TestParseRejectsEmptyMap(t *testing.T) {
	_, err := Parse(strings.NewReader("\n\n"), DefaultSymbols(), testConfig(), log.New(io.Discard))
	assert.Error(t, err)
}

func TestSymbolsFromConfig(t *testing.T) {
	v := viper.New()
	v.Set("MAP_LIGHT_SLOW_CYCLE", 4)
	syms := SymbolsFromConfig(v)
	assert.Equal(t, LightSpec{Open: false, Cycle: 4}, syms.Lights['S'])
	assert.Equal(t, LightSpec{Open: true, Cycle: 7}, syms.Lights['s'])
}

func TestBaseMapParsesAndRuns(t *testing.T) {
	cfg := sim.DefaultConfig()
	cfg.SpawnInterval = 5
	m, err := Base(DefaultSymbols(), cfg, log.New(io.Discard))
	require.NoError(t, err)

	assert.Equal(t, 24, m.Width())
	assert.Equal(t, 16, m.Height())
	assert.NotEmpty(t, m.Destinations())
	assert.NotEmpty(t, m.Lights())

	for tick := 0; tick < 200 && m.Running(); tick++ {
		m.Step()
	}
	metrics := m.Metrics()
	assert.Greater(t, metrics.TotalSpawned, 0)
	assert.Greater(t, metrics.TotalArrived, 0)
}
