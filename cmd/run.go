package main

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/tifye/kousaten/citymap"
	"github.com/tifye/kousaten/sim"
)

// newRunCommand runs the simulation headless as fast as it can and
// prints the final metrics. Useful for comparing seeds and map edits
// without a server or screen attached.
func newRunCommand() *cobra.Command {
	var (
		mapFile       string
		seed1         uint64
		seed2         uint64
		spawnInterval int
		maxTicks      int
		debug         bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation headless and print metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			logLevel := log.InfoLevel
			if debug {
				logLevel = log.DebugLevel
			}
			logger := log.NewWithOptions(os.Stderr, log.Options{
				Level:           logLevel,
				ReportTimestamp: false,
			})

			cfg := sim.DefaultConfig()
			cfg.Seed1 = seed1
			cfg.Seed2 = seed2
			cfg.SpawnInterval = spawnInterval

			syms := citymap.DefaultSymbols()
			modelLogger := logger
			if !debug {
				modelLogger = log.New(io.Discard)
			}

			var model *sim.Model
			var err error
			if mapFile != "" {
				model, err = citymap.ParseFile(mapFile, syms, cfg, modelLogger)
			} else {
				model, err = citymap.Base(syms, cfg, modelLogger)
			}
			if err != nil {
				return err
			}

			for model.Running() && model.Tick() < maxTicks {
				if cmd.Context().Err() != nil {
					break
				}
				model.Step()
			}

			m := model.Metrics()
			logger.Info("run finished",
				"seed1", seed1, "seed2", seed2,
				"ticks", m.Tick,
				"spawned", m.TotalSpawned,
				"arrived", m.TotalArrived,
				"inTransit", m.LiveCars,
				"jams", m.TotalJams,
				"avgSteps", m.AverageSteps(),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&mapFile, "map", "", "Path to a city map file; empty uses the embedded map")
	cmd.Flags().Uint64Var(&seed1, "seed1", 42, "First seed value")
	cmd.Flags().Uint64Var(&seed2, "seed2", 1917, "Second seed value")
	cmd.Flags().IntVar(&spawnInterval, "spawn", 10, "Ticks between spawn cycles")
	cmd.Flags().IntVar(&maxTicks, "max-ticks", 10_000, "Stop after this many ticks")
	cmd.Flags().BoolVar(&debug, "debug", false, "Include debug logs")

	return cmd
}
