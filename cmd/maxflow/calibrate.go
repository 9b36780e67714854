package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jsundahl/max-vol-flow/pkg/accel"
	"github.com/jsundahl/max-vol-flow/pkg/flow"
	"github.com/jsundahl/max-vol-flow/pkg/printer"
)

// minExtrusionTemp is the lowest temperature any common filament extrudes
// at. Below this the trial would grind cold filament.
const minExtrusionTemp = 150.0

var (
	calibrateTemp      float64
	calibrateMinFlow   = 5.0
	calibrateMaxFlow   = 30.0
	calibrateLength    = 50.0
	calibrateTolerance = 0.0
)

func NewCalibrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "calibrate",
		Aliases: []string{"cali", "test"},
		Short:   "Find the maximum clean volumetric flow rate",
		GroupID: gBasic,
		Long: `Find the maximum volumetric flow rate the extruder sustains without
clicking, by binary-searching between --min-flow and --max-flow. Each probe
extrudes --length mm of filament while the accelerometer records; a skipped
step shows up as a spike well above the ambient noise floor.

The result is a short-burst threshold. Sustained printing adds heat-flow
limits this test does not see, so treat the reported value as an upper
bound, not a profile setting to use as-is.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			if calibrateTemp < minExtrusionTemp {
				return fmt.Errorf("extrusion temperature %.0fC is too low to melt filament, use at least %.0fC", calibrateTemp, minExtrusionTemp)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logrus.WithFields(cfg.LogrusFields()).Debug("loaded config")

			tolerance := calibrateTolerance
			if tolerance <= 0 {
				tolerance = cfg.Tolerance()
			}

			p, err := printer.Connect(cfg)
			if err != nil {
				return err
			}
			defer p.Shutdown()
			go relayResponses(p.Responses())

			classifier := &accel.Classifier{
				NoiseMargin: cfg.NoiseMargin(),
				Settle:      cfg.SettleMargin(),
			}
			originX, originY := cfg.ParkOrigin()
			maxX, maxY := cfg.ParkMax()
			runner := flow.NewRunner(p, classifier, calibrateLength, cfg.FilamentDiameter(), flow.ParkGrid{
				OriginX: originX,
				OriginY: originY,
				MaxX:    maxX,
				MaxY:    maxY,
				Step:    cfg.ParkStep(),
			})

			if err := runner.Prepare(calibrateTemp); err != nil {
				return err
			}

			searcher := flow.NewSearcher(runner, calibrateMinFlow, calibrateMaxFlow, tolerance, cfg.MaxIterations())
			res, err := searcher.Run()
			if err != nil {
				return fmt.Errorf("calibration failed: %w", err)
			}

			printResult(res)
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64Var(&calibrateTemp, "temp", 0, "extrusion temperature in degrees C (required)")
	f.Float64Var(&calibrateMinFlow, "min-flow", calibrateMinFlow, "minimum flow rate to test in mm3/s")
	f.Float64Var(&calibrateMaxFlow, "max-flow", calibrateMaxFlow, "maximum flow rate to test in mm3/s")
	f.Float64Var(&calibrateLength, "length", calibrateLength, "filament length to extrude per trial in mm")
	f.Float64Var(&calibrateTolerance, "tolerance", 0, "search resolution in mm3/s (default from config)")
	_ = cmd.MarkFlagRequired("temp")

	return cmd
}

// relayResponses echoes async printer responses while a trial script is
// still being held open. Klipper prefixes errors with "!!"; those would
// otherwise be invisible until the blocking script request returns.
func relayResponses(lines <-chan string) {
	for line := range lines {
		if strings.HasPrefix(line, "!!") {
			logrus.WithField("response", line).Error("printer reported an error")
		} else {
			logrus.WithField("response", line).Debug("printer response")
		}
	}
}

func printResult(res *flow.Result) {
	bold := color.New(color.Bold)

	if res.Capped {
		color.Yellow("No click detected up to %.4g mm3/s.", res.MaxFlow)
		fmt.Printf("Result: %s (lower-bound estimate)\n", bold.Sprintf(">= %.4g mm3/s", res.MaxFlow))
		fmt.Println("The true maximum may exceed the tested range. Re-run with a higher --max-flow for a precise answer.")
	} else if res.CapReached {
		color.Yellow("Iteration cap reached before the interval narrowed to %.4g mm3/s.", res.Tolerance)
		fmt.Printf("Max clean flow rate: %s (within %.4g mm3/s)\n",
			bold.Sprintf("%.4g mm3/s", res.MaxFlow), res.Resolution)
		fmt.Printf("Stopped after %d iterations over %s.\n", res.Iterations, res.Elapsed.Round(time.Second))
	} else {
		fmt.Printf("Max clean flow rate: %s (within %.4g mm3/s)\n",
			bold.Sprintf("%.4g mm3/s", res.MaxFlow), res.Tolerance)
		fmt.Printf("Converged in %d iterations over %s.\n", res.Iterations, res.Elapsed.Round(time.Second))
	}

	fmt.Println("Note: this is a short-burst threshold; sustained prints should stay below it.")
}
