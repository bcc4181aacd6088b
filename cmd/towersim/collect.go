package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harvard-visionlab/block-towers/internal/catalog"
	"github.com/harvard-visionlab/block-towers/internal/collector"
	"github.com/harvard-visionlab/block-towers/internal/config"
	"github.com/harvard-visionlab/block-towers/internal/dataset"
	"github.com/harvard-visionlab/block-towers/internal/storage"
	"github.com/harvard-visionlab/block-towers/internal/tui"
)

var (
	numSamples int
	pctFall    float64
	outFile    string

	dsPreset   string
	dsHeights  string
	dsTestSize float64
	dsIndex    bool
)

func newCollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "collect a class-balanced batch of towers",
		RunE:  runCollect,
	}
	addGeneratorFlags(cmd)
	cmd.Flags().IntVar(&numSamples, "samples", config.DefaultNumSamples, "number of towers")
	cmd.Flags().Float64Var(&pctFall, "pct-fall", config.DefaultPctFall, "fraction of towers that fall")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "write the batch as JSON to this file")
	return cmd
}

func runCollect(cmd *cobra.Command, args []string) error {
	p, err := generatorParams(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("samples") {
		cfg.Collector.NumSamples = numSamples
	}
	if cmd.Flags().Changed("pct-fall") {
		cfg.Collector.PctFall = pctFall
	}

	c := collector.New(newGenerator().Func())
	c.SetMaxAttempts(cfg.Collector.MaxAttempts)

	var batch *collector.Batch
	stage := fmt.Sprintf("stack%d", p.NumBlocks)
	err = runJob(cmd, "collect", func(ctx context.Context, report tui.Report) error {
		c.AddObserver(tui.CollectObserver(stage, report))
		var err error
		batch, err = c.Collect(ctx, p, cfg.Collector.NumSamples, cfg.Collector.PctFall)
		return err
	})
	if err != nil {
		return err
	}

	slog.Info("collected", "stable", len(batch.Stable), "unstable", len(batch.Unstable), "attempts", batch.Attempts)
	fmt.Printf("stable:   %d\n", len(batch.Stable))
	fmt.Printf("unstable: %d\n", len(batch.Unstable))
	fmt.Printf("attempts: %d (acceptance %.1f%%)\n", batch.Attempts,
		100*float64(len(batch.Stable)+len(batch.Unstable))/float64(batch.Attempts))

	if outFile == "" {
		return nil
	}
	f, err := os.Create(outFile)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(batch); err != nil {
		return err
	}
	fmt.Printf("written to %s\n", outFile)
	return nil
}

func newDatasetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "build a balanced train/test dataset over several tower heights",
		RunE:  runDataset,
	}
	f := cmd.Flags()
	f.StringVar(&dsPreset, "preset", config.DefaultPreset, fmt.Sprintf("generator preset %v", config.ListPresets()))
	f.StringVar(&dsHeights, "heights", "", "comma separated tower heights (default: all preset heights)")
	f.IntVar(&numSamples, "samples", config.DefaultNumSamples, "towers per height")
	f.Float64Var(&pctFall, "pct-fall", config.DefaultPctFall, "fraction of towers that fall")
	f.Float64Var(&dsTestSize, "test-size", config.DefaultTestSize, "fraction of each class held out for testing")
	f.BoolVar(&dsIndex, "index", true, "add the dataset to the tower catalog")
	f.StringVarP(&outFile, "out", "o", "", "also write the dataset as JSON to this file")
	return cmd
}

func parseHeights(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		h, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid height %q: %w", part, err)
		}
		out = append(out, h)
	}
	sort.Ints(out)
	return out, nil
}

func runDataset(cmd *cobra.Command, args []string) error {
	dc := cfg.Dataset
	f := cmd.Flags()
	if f.Changed("preset") {
		dc.Preset = dsPreset
	}
	if f.Changed("heights") {
		hs, err := parseHeights(dsHeights)
		if err != nil {
			return err
		}
		dc.Heights = hs
	}
	if f.Changed("samples") {
		dc.NumSamples = numSamples
	}
	if f.Changed("pct-fall") {
		dc.PctFall = pctFall
	}
	if f.Changed("test-size") {
		dc.TestSize = dsTestSize
	}

	preset := config.GetPreset(dc.Preset)
	if preset == nil {
		return fmt.Errorf("unknown preset: %s (available: %v)", dc.Preset, config.ListPresets())
	}

	var ds *dataset.Dataset
	err := runJob(cmd, "dataset "+dc.Preset, func(ctx context.Context, report tui.Report) error {
		opts := dataset.Options{
			Heights:         dc.Heights,
			NumSamples:      dc.NumSamples,
			PctFall:         dc.PctFall,
			TestSize:        dc.TestSize,
			Seed:            cfg.Seed,
			MaxAttempts:     cfg.Collector.MaxAttempts,
			SamplerAttempts: cfg.Collector.SamplerAttempts,
			Observe: func(h int, p collector.Progress) {
				tui.CollectObserver(fmt.Sprintf("stack%d", h), report).OnCandidate(p)
			},
			OnHeight: func(h int, b *collector.Batch) {
				slog.Debug("height collected", "height", h, "attempts", b.Attempts)
			},
		}
		var err error
		ds, err = dataset.Build(ctx, dc.Preset, preset, opts)
		return err
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SPLIT\tTRAIN\tTEST")
	for _, key := range ds.Keys() {
		s := ds.Splits[key]
		fmt.Fprintf(w, "%s\t%d\t%d\n", key, len(s.Train), len(s.Test))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	st, err := newStore()
	if err != nil {
		return err
	}
	runID, err := st.SaveDataset(storage.RunMetadata{Seed: cfg.Seed}, ds)
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", runID)

	if dsIndex {
		cat, err := catalog.Open(cfg.Catalog, slog.Default())
		if err != nil {
			return err
		}
		defer cat.Close()
		id, err := cat.InsertDataset(cmd.Context(), ds, cfg.Seed)
		if err != nil {
			return err
		}
		fmt.Printf("catalog dataset: %s\n", id)
	}

	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := ds.WriteJSON(f); err != nil {
			return err
		}
		fmt.Printf("written to %s\n", outFile)
	}
	return nil
}
