package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harvard-visionlab/block-towers/internal/storage"
	"github.com/harvard-visionlab/block-towers/internal/viz"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(cfg.DataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tTIME\tBLOCKS\tSEED\tLABEL")
	for _, run := range runs {
		blocks := "-"
		if run.NumBlocks > 0 {
			blocks = fmt.Sprint(run.NumBlocks)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			run.ID,
			run.Kind,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			blocks,
			run.Seed,
			run.Label,
		)
	}
	return w.Flush()
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [run_id]",
		Short: "show a run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}
}

func showRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(cfg.DataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	fmt.Printf("run:  %s\n", meta.ID)
	fmt.Printf("kind: %s\n", meta.Kind)
	fmt.Printf("time: %s\n", meta.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Printf("seed: %d\n", meta.Seed)
	if meta.Backend != "" {
		fmt.Printf("backend: %s\n", meta.Backend)
	}
	printValues("params", meta.Params)
	printValues("metrics", meta.Metrics)
	fmt.Println()

	switch meta.Kind {
	case storage.KindSimulation:
		sim, err := st.LoadSimulation(runID)
		if err != nil {
			return err
		}
		return printSimulation(sim)

	case storage.KindCalibration:
		res, err := st.LoadCalibration(runID)
		if err != nil {
			return err
		}
		graph, err := viz.CalibrationASCII(viz.CalibrationSeries{
			Title:     fmt.Sprintf("%d blocks", meta.NumBlocks),
			Std:       res.StdHistory,
			Prob:      res.ProbHistory,
			Reversals: res.ReversalFlags,
			Estimate:  res.Estimate,
		}, 70, 12)
		if err != nil {
			return err
		}
		fmt.Println(graph)

	case storage.KindDataset:
		ds, err := st.LoadDataset(runID)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "preset %s\n", ds.Preset)
		fmt.Fprintln(w, "SPLIT\tTRAIN\tTEST")
		for _, key := range ds.Keys() {
			s := ds.Splits[key]
			fmt.Fprintf(w, "%s\t%d\t%d\n", key, len(s.Train), len(s.Test))
		}
		return w.Flush()
	}
	return nil
}

func printValues(title string, values map[string]float64) {
	if len(values) == 0 {
		return
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Printf("%s:\n", title)
	for _, name := range names {
		fmt.Printf("  %s: %g\n", name, values[name])
	}
}
