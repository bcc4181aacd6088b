package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harvard-visionlab/block-towers/internal/engine"
	"github.com/harvard-visionlab/block-towers/internal/export"
	"github.com/harvard-visionlab/block-towers/internal/metrics"
	"github.com/harvard-visionlab/block-towers/internal/storage"
	"github.com/harvard-visionlab/block-towers/internal/tower"
	"github.com/harvard-visionlab/block-towers/internal/trajectory"
	"github.com/harvard-visionlab/block-towers/internal/tui"
	"github.com/harvard-visionlab/block-towers/internal/viz"
)

var (
	towerFile   string
	simDuration float64
	simFPS      float64
	simScale    float64
	gifOut      bool
	play        bool
	pathSVG     bool
	batchCount  int
	workers     int
)

func addSimulationFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64Var(&simDuration, "duration", trajectory.DefaultParams().Duration, "simulated seconds")
	f.Float64Var(&simFPS, "fps", trajectory.DefaultParams().Framerate, "recorded frames per second")
	f.Float64Var(&simScale, "scale", trajectory.DefaultParams().ScaleFactor, "scale factor applied to the tower")
}

func simulationParams(cmd *cobra.Command) (trajectory.Params, error) {
	p := cfg.Simulation.Params
	f := cmd.Flags()
	if f.Changed("duration") {
		p.Duration = simDuration
	}
	if f.Changed("fps") {
		p.Framerate = simFPS
	}
	if f.Changed("scale") {
		p.ScaleFactor = simScale
	}
	return p, p.Validate()
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "record the trajectory of one tower",
		RunE:  runSimulate,
	}
	addGeneratorFlags(cmd)
	addSimulationFlags(cmd)
	cmd.Flags().StringVar(&towerFile, "tower", "", "tower JSON file (default: generate one)")
	cmd.Flags().BoolVar(&gifOut, "gif", false, "render frames and save an animated GIF in the run directory")
	cmd.Flags().BoolVar(&play, "play", false, "play the recording in the terminal")
	cmd.Flags().BoolVar(&pathSVG, "svg", false, "save the top block's x-z path as SVG in the run directory")
	return cmd
}

// startTower loads --tower or generates a tower from the generator flags.
func startTower(cmd *cobra.Command) (tower.Tower, error) {
	if towerFile != "" {
		return loadTower(towerFile)
	}
	p, err := generatorParams(cmd)
	if err != nil {
		return nil, err
	}
	return newGenerator().Generate(p)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	start, err := startTower(cmd)
	if err != nil {
		return err
	}
	params, err := simulationParams(cmd)
	if err != nil {
		return err
	}
	factory, err := engineFactory()
	if err != nil {
		return err
	}

	var render *engine.RenderOptions
	if gifOut {
		render = &cfg.Simulation.Render
	}

	slog.Info("simulating", "blocks", len(start), "falls", start.AnyUnstable(), "backend", cfg.Simulation.Backend)
	sim, frames, err := trajectory.Generate(cmd.Context(), start, factory, params, render)
	if err != nil {
		return err
	}

	if err := printSimulation(sim); err != nil {
		return err
	}

	st, err := newStore()
	if err != nil {
		return err
	}
	summary := metrics.Evaluate(sim, metrics.Default()...)
	printValues("metrics", summary)

	runID, err := st.SaveSimulation(storage.RunMetadata{Seed: cfg.Seed, Backend: cfg.Simulation.Backend, Metrics: summary}, sim)
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", runID)

	if pathSVG {
		path := filepath.Join(st.Dir(runID), "top_path.svg")
		svg := export.PathToSVG(export.BlockPath(sim, len(sim.StartPositions)-1), 600, 400, "#00ccff")
		if err := os.WriteFile(path, []byte(svg), 0644); err != nil {
			return err
		}
		fmt.Printf("path: %s\n", path)
	}

	if gifOut {
		path := filepath.Join(st.Dir(runID), "simulation.gif")
		if err := viz.SaveGIF(path, frames, viz.FrameDelay(params.Framerate)); err != nil {
			return err
		}
		fmt.Printf("gif: %s\n", path)
	}

	if play {
		return playSimulation(sim)
	}
	return nil
}

func printSimulation(sim *trajectory.Simulation) error {
	fmt.Printf("%d frames over %.2fs\n\n", len(sim.Trajectory), sim.Params.Duration)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BLOCK\tSTART\tFINAL\tMOVED")
	for i, b := range sim.StartPositions {
		end := sim.FinalPositions[i]
		moved := math.Sqrt((end.X-b.X)*(end.X-b.X) + (end.Y-b.Y)*(end.Y-b.Y) + (end.Z-b.Z)*(end.Z-b.Z))
		fmt.Fprintf(w, "%d\t(%.3f, %.3f, %.3f)\t(%.3f, %.3f, %.3f)\t%.3f\n", i, b.X, b.Y, b.Z, end.X, end.Y, end.Z, moved)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	names, heights := blockHeights(sim)
	graph, err := viz.HeightsASCII(names, heights, 70, 10, "block height (z) per frame")
	if err != nil {
		return err
	}
	fmt.Printf("\n%s\n\n", graph)
	return nil
}

func blockHeights(sim *trajectory.Simulation) ([]string, [][]float64) {
	n := len(sim.StartPositions)
	names := make([]string, n)
	series := make([][]float64, n)
	for i := range series {
		series[i] = make([]float64, 0, len(sim.Trajectory))
	}
	for _, f := range sim.Trajectory {
		for i, p := range f.Data {
			if i < n {
				names[i] = p.Name
				series[i] = append(series[i], p.XYZ[2])
			}
		}
	}
	return names, series
}

func playSimulation(sim *trajectory.Simulation) error {
	p, err := tui.NewPlayer(sim, tui.GetTheme(theme), 60, 20)
	if err != nil {
		return err
	}
	return tui.Play(os.Stdout, p)
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [run_id]",
		Short: "re-run a recorded simulation and check it stays in sync",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplay,
	}
	cmd.Flags().BoolVar(&gifOut, "gif", false, "save the replayed frames as an animated GIF")
	cmd.Flags().BoolVar(&play, "play", false, "play the stored trajectory in the terminal instead")
	return cmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	st, err := newStore()
	if err != nil {
		return err
	}
	sim, err := st.LoadSimulation(args[0])
	if err != nil {
		return err
	}
	if play {
		return playSimulation(sim)
	}

	factory, err := engineFactory()
	if err != nil {
		return err
	}
	frames, err := sim.Replay(cmd.Context(), factory, cfg.Simulation.Render)
	if err != nil {
		return err
	}
	fmt.Printf("replayed %d frames in sync\n", len(frames))

	if gifOut {
		path := filepath.Join(st.Dir(args[0]), "replay.gif")
		if err := viz.SaveGIF(path, frames, viz.FrameDelay(sim.Params.Framerate)); err != nil {
			return err
		}
		fmt.Printf("gif: %s\n", path)
	}
	return nil
}

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "simulate many generated towers in parallel",
		RunE:  runBatch,
	}
	addGeneratorFlags(cmd)
	addSimulationFlags(cmd)
	cmd.Flags().IntVarP(&batchCount, "count", "n", 10, "number of towers")
	cmd.Flags().IntVar(&workers, "workers", 4, "parallel simulations")
	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	p, err := generatorParams(cmd)
	if err != nil {
		return err
	}
	params, err := simulationParams(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("workers") {
		cfg.Simulation.Workers = workers
	}
	factory, err := engineFactory()
	if err != nil {
		return err
	}

	gen := newGenerator()
	towers := make([]tower.Tower, batchCount)
	for i := range towers {
		if towers[i], err = gen.Generate(p); err != nil {
			return err
		}
	}

	var sims []*trajectory.Simulation
	err = runJob(cmd, "batch", func(ctx context.Context, report tui.Report) error {
		var err error
		sims, err = trajectory.Batch(ctx, towers, factory, params, cfg.Simulation.Workers, func(done, total int) {
			report(tui.Event{Stage: fmt.Sprintf("%d workers", cfg.Simulation.Workers), Done: done, Total: total})
		})
		return err
	})
	if err != nil {
		return err
	}

	st, err := newStore()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TOWER\tFALLS\tFRAMES\tRUN")
	for i, sim := range sims {
		runID, err := st.SaveSimulation(storage.RunMetadata{
			Seed:    cfg.Seed,
			Backend: cfg.Simulation.Backend,
			Label:   fmt.Sprintf("batch %d", i),
			Metrics: metrics.Evaluate(sim, metrics.Default()...),
		}, sim)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%v\t%d\t%s\n", i, sim.StartPositions.AnyUnstable(), len(sim.Trajectory), runID)
	}
	return w.Flush()
}
