// Command simviewer renders a simulation run in the terminal. It is a
// development tool: no server, no persistence, just the model and a
// screen.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/gdamore/tcell/v2"
	"github.com/tifye/kousaten/citymap"
	"github.com/tifye/kousaten/sim"
	"golang.org/x/time/rate"
)

var (
	mapFile       string
	seed1         uint64
	seed2         uint64
	tps           float64
	spawnInterval int
)

func main() {
	flag.StringVar(&mapFile, "map", "", "Path to a city map file; empty uses the embedded map")
	flag.Uint64Var(&seed1, "seed1", 42, "First seed value")
	flag.Uint64Var(&seed2, "seed2", 1917, "Second seed value")
	flag.Float64Var(&tps, "tps", 4, "Simulation ticks per second")
	flag.IntVar(&spawnInterval, "spawn", 10, "Ticks between spawn cycles")
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := sim.DefaultConfig()
	cfg.Seed1 = seed1
	cfg.Seed2 = seed2
	cfg.SpawnInterval = spawnInterval

	logger := log.New(io.Discard)
	syms := citymap.DefaultSymbols()

	var model *sim.Model
	var err error
	if mapFile != "" {
		model, err = citymap.ParseFile(mapFile, syms, cfg, logger)
	} else {
		model, err = citymap.Base(syms, cfg, logger)
	}
	if err != nil {
		return err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	v := &viewer{
		screen: screen,
		model:  model,
	}
	v.run()
	return nil
}

type viewer struct {
	screen tcell.Screen
	model  *sim.Model

	paused bool
}

func (v *viewer) run() {
	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			eventChan <- v.screen.PollEvent()
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticks := make(chan struct{})
	go func() {
		limiter := rate.NewLimiter(rate.Limit(tps), 1)
		for {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			select {
			case ticks <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()

	v.draw()
	for {
		select {
		case ev := <-eventChan:
			if !v.handleInput(ev) {
				return
			}
			v.draw()

		case <-ticks:
			if v.paused || !v.model.Running() {
				continue
			}
			v.model.Step()
			v.draw()
		}
	}
}

func (v *viewer) handleInput(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if ev.Key() == tcell.KeyRune {
			switch ev.Rune() {
			case 'q':
				return false
			case ' ':
				v.paused = !v.paused
			case 's':
				// Single step while paused.
				if v.model.Running() {
					v.model.Step()
				}
			}
		}

	case *tcell.EventResize:
		v.screen.Sync()
	}

	return true
}

var stateStyles = map[string]tcell.Style{
	"calculating":     tcell.StyleDefault.Foreground(tcell.ColorYellow),
	"moving":          tcell.StyleDefault.Foreground(tcell.ColorWhite),
	"waitingRedLight": tcell.StyleDefault.Foreground(tcell.ColorOrange),
	"waitingTraffic":  tcell.StyleDefault.Foreground(tcell.ColorGray),
	"jammed":          tcell.StyleDefault.Foreground(tcell.ColorRed),
	"inLoop":          tcell.StyleDefault.Foreground(tcell.ColorPurple),
}

var dirRunes = map[string]rune{
	"Right": '>',
	"Left":  '<',
	"Up":    '^',
	"Down":  'v',
}

func (v *viewer) draw() {
	v.screen.Clear()
	height := v.model.Height()

	// Grid y grows upward; screen y grows downward.
	screenY := func(y int) int { return height - 1 - y }

	roadStyle := tcell.StyleDefault.Foreground(tcell.ColorDarkSlateGray)
	for _, r := range v.model.RoadViews() {
		glyph := dirRunes[r.Dir]
		if r.Decorative {
			glyph = '.'
		}
		v.screen.SetContent(r.X, screenY(r.Y), glyph, nil, roadStyle)
	}

	obstacleStyle := tcell.StyleDefault.Foreground(tcell.ColorSaddleBrown)
	for _, o := range v.model.ObstacleViews() {
		v.screen.SetContent(o.X, screenY(o.Y), '#', nil, obstacleStyle)
	}

	destStyle := tcell.StyleDefault.Foreground(tcell.ColorLightBlue)
	for _, d := range v.model.DestinationViews() {
		v.screen.SetContent(d.X, screenY(d.Y), 'D', nil, destStyle)
	}

	for _, l := range v.model.LightViews() {
		style := tcell.StyleDefault.Foreground(tcell.ColorGreen)
		if !l.Open {
			style = tcell.StyleDefault.Foreground(tcell.ColorRed)
		}
		v.screen.SetContent(l.X, screenY(l.Y), 'S', nil, style)
	}

	for _, c := range v.model.CarViews() {
		style, ok := stateStyles[c.State]
		if !ok {
			style = tcell.StyleDefault
		}
		v.screen.SetContent(c.X, screenY(c.Y), 'c', nil, style.Bold(true))
	}

	v.drawStatus(height + 1)
	v.screen.Show()
}

func (v *viewer) drawStatus(row int) {
	m := v.model.Metrics()
	status := fmt.Sprintf(
		"tick %d  live %d  spawned %d  arrived %d  jams %d  avg steps %.1f",
		m.Tick, m.LiveCars, m.TotalSpawned, m.TotalArrived, m.TotalJams, m.AverageSteps(),
	)
	if v.paused {
		status += "  [paused]"
	}
	if !v.model.Running() {
		status += "  [finished]"
	}
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	for i, r := range status {
		v.screen.SetContent(i, row, r, nil, style)
	}
}
