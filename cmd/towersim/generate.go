package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harvard-visionlab/block-towers/internal/export"
	"github.com/harvard-visionlab/block-towers/internal/stability"
	"github.com/harvard-visionlab/block-towers/internal/tower"
	"github.com/harvard-visionlab/block-towers/internal/viz"
)

var (
	genCount   int
	genJSON    bool
	genView    bool
	genMetrics bool
	genSVG     string
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "generate random towers and predict whether they fall",
		RunE:  runGenerate,
	}
	addGeneratorFlags(cmd)
	cmd.Flags().IntVarP(&genCount, "count", "n", 1, "number of towers")
	cmd.Flags().BoolVar(&genJSON, "json", false, "print towers as JSON")
	cmd.Flags().BoolVar(&genView, "view", true, "draw a side view of each tower")
	cmd.Flags().BoolVar(&genMetrics, "metrics", false, "print stability metrics")
	cmd.Flags().StringVar(&genSVG, "svg", "", "write a side view SVG of each tower into this directory")
	return cmd
}

func runGenerate(cmd *cobra.Command, args []string) error {
	p, err := generatorParams(cmd)
	if err != nil {
		return err
	}
	gen := newGenerator()

	towers := make([]tower.Tower, 0, genCount)
	for i := 0; i < genCount; i++ {
		t, err := gen.Generate(p)
		if err != nil {
			return fmt.Errorf("tower %d: %w", i, err)
		}
		towers = append(towers, t)
	}

	if genJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(towers)
	}

	for i, t := range towers {
		if err := printTower(i, t); err != nil {
			return err
		}
	}

	if genSVG != "" {
		if err := os.MkdirAll(genSVG, 0755); err != nil {
			return err
		}
		for i, t := range towers {
			path := filepath.Join(genSVG, fmt.Sprintf("tower_%03d.svg", i))
			if err := os.WriteFile(path, []byte(export.CanvasToSVG(viz.TowerView(t, 40, 12), 4)), 0644); err != nil {
				return err
			}
		}
		fmt.Printf("%d views written to %s\n", len(towers), genSVG)
	}
	return nil
}

func printTower(i int, t tower.Tower) error {
	falls, _, err := stability.PredictFall(t)
	if err != nil {
		return err
	}
	verdict := "stable"
	if falls {
		verdict = "falls"
	}
	shape := "-"
	if len(t) > 1 {
		if shape, err = stability.ShapeCode(t, stability.Coarse); err != nil {
			return err
		}
	}
	fmt.Printf("tower %d: %d blocks, %s, shape %s\n", i, len(t), verdict, shape)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  BLOCK\tX\tY\tZ\tUNSTABLE")
	for j, b := range t {
		fmt.Fprintf(w, "  %d\t%.4f\t%.4f\t%.4f\t%v\n", j, b.X, b.Y, b.Z, b.Unstable)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if genView {
		fmt.Print(viz.TowerView(t, 40, 12).String())
	}

	if genMetrics && len(t) > 1 {
		m, err := stability.Compute(t)
		if err != nil {
			return err
		}
		fmt.Printf("  max distance from center:  %.4f\n", m.MaxDistanceFromTowerCenter)
		fmt.Printf("  max distance from bottom:  %.4f\n", m.MaxDistanceFromBottomBlock)
		fmt.Printf("  min percent supported:     %.4f\n", m.MinPercentSupported)
		fmt.Printf("  max centroid edge dist:    %.4f\n", m.MaxCentroidEdgeDistance)
		fmt.Printf("  mean centroid edge dist:   %.4f\n", m.MeanCentroidEdgeDistance)
		fmt.Printf("  unstable blocks:           %d (%.0f%%)\n", m.NumUnstable, 100*m.PctUnstable)
		if m.CorrectRequiresMax {
			fmt.Println("  mean margin hides an overhang")
		}
	}
	fmt.Println()
	return nil
}

// loadTower reads a JSON array of blocks and labels it.
func loadTower(path string) (tower.Tower, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t tower.Tower
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := stability.Label(t); err != nil {
		return nil, err
	}
	return t, nil
}
