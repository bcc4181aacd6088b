package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harvard-visionlab/block-towers/internal/staircase"
	"github.com/harvard-visionlab/block-towers/internal/storage"
	"github.com/harvard-visionlab/block-towers/internal/tui"
	"github.com/harvard-visionlab/block-towers/internal/viz"
)

var (
	calTarget    float64
	calStartStd  float64
	calReversals int
	calStep      float64
	calSamples   int
	calPNG       bool
	calHTML      bool
)

func newCalibrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "find the offset std that makes towers fall at the target rate",
		RunE:  runCalibrate,
	}
	addGeneratorFlags(cmd)
	def := staircase.DefaultConfig()
	f := cmd.Flags()
	f.Float64Var(&calTarget, "target", def.Target, "target fall probability")
	f.Float64Var(&calStartStd, "start-std", def.StartStd, "starting std")
	f.IntVar(&calReversals, "reversals", def.TotalReversals, "reversals before stopping")
	f.Float64Var(&calStep, "step", def.InitialStep, "initial std step")
	f.IntVar(&calSamples, "samples", def.NumSamples, "towers measured per iteration")
	f.BoolVar(&calPNG, "png", false, "save a PNG plot in the run directory")
	f.BoolVar(&calHTML, "html", false, "save an interactive HTML plot in the run directory")
	return cmd
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	p, err := generatorParams(cmd)
	if err != nil {
		return err
	}

	sc := cfg.Staircase
	f := cmd.Flags()
	if f.Changed("target") {
		sc.Target = calTarget
	}
	if f.Changed("start-std") {
		sc.StartStd = calStartStd
	}
	if f.Changed("reversals") {
		sc.TotalReversals = calReversals
	}
	if f.Changed("step") {
		sc.InitialStep = calStep
	}
	if f.Changed("samples") {
		sc.NumSamples = calSamples
	}
	if err := sc.Validate(); err != nil {
		return err
	}

	measure := staircase.MonteCarlo(newGenerator().Func(), p)
	stage := fmt.Sprintf("stack%d", p.NumBlocks)

	var res *staircase.Result
	err = runJob(cmd, "calibrate", func(ctx context.Context, report tui.Report) error {
		var err error
		res, err = staircase.Calibrate(ctx, measure, sc, tui.CalibrateObserver(stage, sc.TotalReversals, report))
		return err
	})
	if err != nil {
		return err
	}
	slog.Info("calibrated", "blocks", p.NumBlocks, "estimate", res.Estimate, "iterations", res.Iterations)

	series := viz.CalibrationSeries{
		Title:     fmt.Sprintf("%d blocks", p.NumBlocks),
		Std:       res.StdHistory,
		Prob:      res.ProbHistory,
		Reversals: res.ReversalFlags,
		Estimate:  res.Estimate,
	}
	graph, err := viz.CalibrationASCII(series, 70, 12)
	if err != nil {
		return err
	}
	fmt.Println(graph)
	fmt.Printf("\nuse std = %.4f for %d blocks (%d iterations)\n", res.Estimate, p.NumBlocks, res.Iterations)

	st, err := newStore()
	if err != nil {
		return err
	}
	runID, err := st.SaveCalibration(storage.RunMetadata{
		NumBlocks: p.NumBlocks,
		Seed:      cfg.Seed,
		Params: map[string]float64{
			"side_length": p.SideLength,
			"truncate":    p.Truncate,
			"target":      sc.Target,
			"start_std":   sc.StartStd,
		},
	}, res)
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", runID)

	return savePlots(st.Dir(runID), series)
}

func savePlots(dir string, series viz.CalibrationSeries) error {
	if calPNG {
		path := filepath.Join(dir, "calibration.png")
		if err := viz.CalibrationPNG(path, series); err != nil {
			return err
		}
		fmt.Printf("plot: %s\n", path)
	}
	if calHTML {
		path := filepath.Join(dir, "calibration.html")
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := viz.CalibrationHTML(f, series); err != nil {
			return err
		}
		fmt.Printf("chart: %s\n", path)
	}
	return nil
}
