// Package citymap parses rectangular character maps into simulation
// models. Row 0 of the file is the top of the city and becomes the
// maximum y coordinate; unrecognized glyphs are empty cells.
package citymap

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
	"github.com/tifye/kousaten/sim"
)

//go:embed maps/base.txt
var baseMap []byte

// LightSpec describes a traffic-light glyph: its starting state and
// cycle length in ticks.
type LightSpec struct {
	Open  bool
	Cycle int
}

// SymbolTable maps map-file glyphs to entities.
type SymbolTable struct {
	Roads       map[rune]sim.Direction
	Lights      map[rune]LightSpec
	Obstacle    rune
	Destination rune
	Decorative  rune
}

// DefaultSymbols mirrors the classic city map dictionary: the four
// directional road glyphs, a slow closed light and a fast open one,
// obstacles, destinations, and decorative road.
func DefaultSymbols() SymbolTable {
	return SymbolTable{
		Roads: map[rune]sim.Direction{
			'>': sim.Right,
			'<': sim.Left,
			'^': sim.Up,
			'v': sim.Down,
		},
		Lights: map[rune]LightSpec{
			'S': {Open: false, Cycle: 10},
			's': {Open: true, Cycle: 7},
		},
		Obstacle:    '#',
		Destination: 'D',
		Decorative:  'N',
	}
}

// SymbolsFromConfig overlays light cycle lengths from configuration
// onto the default table.
func SymbolsFromConfig(config *viper.Viper) SymbolTable {
	syms := DefaultSymbols()
	if config == nil {
		return syms
	}
	if c := config.GetInt("MAP_LIGHT_SLOW_CYCLE"); c > 0 {
		syms.Lights['S'] = LightSpec{Open: false, Cycle: c}
	}
	if c := config.GetInt("MAP_LIGHT_FAST_CYCLE"); c > 0 {
		syms.Lights['s'] = LightSpec{Open: true, Cycle: c}
	}
	return syms
}

// Parse builds a model from a character map. Rows shorter than the
// widest one are padded with empty cells; glyphs outside the symbol
// table are tolerated as empty cells, not rejected.
func Parse(r io.Reader, syms SymbolTable, cfg sim.Config, logger *log.Logger) (*sim.Model, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read map: %w", err)
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("empty map")
	}

	width := 0
	grid := make([][]rune, len(lines))
	for i, line := range lines {
		grid[i] = []rune(line)
		if len(grid[i]) > width {
			width = len(grid[i])
		}
	}
	height := len(lines)

	m := sim.NewModel(width, height, cfg, logger)
	for row, runes := range grid {
		y := height - row - 1
		for x, glyph := range runes {
			pos := sim.Coord{X: x, Y: y}
			if dir, ok := syms.Roads[glyph]; ok {
				m.AddRoad(pos, dir, false)
				continue
			}
			if spec, ok := syms.Lights[glyph]; ok {
				m.AddLight(pos, spec.Open, spec.Cycle)
				continue
			}
			switch glyph {
			case syms.Decorative:
				// Direction on decorative road is cosmetic; traffic
				// never enters these cells.
				m.AddRoad(pos, sim.Right, true)
			case syms.Obstacle:
				m.AddObstacle(pos)
			case syms.Destination:
				m.AddDestination(pos)
			}
		}
	}
	return m, nil
}

// ParseFile loads a map from disk.
func ParseFile(path string, syms SymbolTable, cfg sim.Config, logger *log.Logger) (*sim.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open map %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f, syms, cfg, logger)
}

// Base builds a model from the embedded default city.
func Base(syms SymbolTable, cfg sim.Config, logger *log.Logger) (*sim.Model, error) {
	return Parse(bytes.NewReader(baseMap), syms, cfg, logger)
}
