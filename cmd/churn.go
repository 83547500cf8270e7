package main

import (
	"math/rand/v2"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/tifye/kousaten/stream"
)

// newChurnCommand hammers the stream hub with randomized viewer
// lifecycle traffic to shake out regressions before they reach the
// live endpoint.
func newChurnCommand() *cobra.Command {
	var (
		seed1      uint64
		seed2      uint64
		iterations int
		times      uint
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "churn",
		Short: "Run the stream hub viewer churn simulator",
		Run: func(cmd *cobra.Command, args []string) {
			logLevel := log.InfoLevel
			if debug {
				logLevel = log.DebugLevel
			}
			logger := log.NewWithOptions(os.Stderr, log.Options{
				Level:           logLevel,
				ReportTimestamp: false,
			})

			if times == 0 {
				stream.NewSimulator(logger, seed1, seed2).Run(iterations)
				return
			}

			for range times {
				if cmd.Context().Err() != nil {
					return
				}
				s1, s2 := rand.Uint64(), rand.Uint64()
				stream.NewSimulator(logger, s1, s2).Run(iterations)
			}
		},
	}

	cmd.Flags().Uint64Var(&seed1, "seed1", 0, "First seed value")
	cmd.Flags().Uint64Var(&seed2, "seed2", 0, "Second seed value")
	cmd.Flags().IntVar(&iterations, "iterations", 100_000, "Steps per simulation")
	cmd.Flags().UintVar(&times, "times", 0, "Run this many times with random seeds")
	cmd.Flags().BoolVar(&debug, "debug", false, "Include debug logs")

	return cmd
}
