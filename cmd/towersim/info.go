package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harvard-visionlab/block-towers/internal/catalog"
	"github.com/harvard-visionlab/block-towers/internal/config"
	"github.com/harvard-visionlab/block-towers/internal/scene"
	"github.com/harvard-visionlab/block-towers/internal/stability"
)

var (
	shapeHeight  int
	shapeRes     string
	shapeDataset string
	sceneOut     string
)

func newShapesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shapes",
		Short: "enumerate tower silhouettes, or count them in a catalog dataset",
		RunE:  runShapes,
	}
	f := cmd.Flags()
	f.IntVar(&shapeHeight, "height", config.DefaultNumBlocks, "tower height")
	f.StringVar(&shapeRes, "resolution", "coarse", "bin resolution (coarse, fine)")
	f.StringVar(&shapeDataset, "dataset", "", "catalog dataset id to measure coverage of")
	return cmd
}

func runShapes(cmd *cobra.Command, args []string) error {
	res, err := stability.ParseResolution(shapeRes)
	if err != nil {
		return err
	}

	if shapeDataset == "" {
		shapes, err := stability.AllShapes(shapeHeight, res)
		if err != nil {
			return err
		}
		for _, s := range shapes {
			fmt.Println(s)
		}
		fmt.Printf("%d %s shapes for %d blocks\n", len(shapes), res, shapeHeight)
		return nil
	}

	cat, err := catalog.Open(cfg.Catalog, slog.Default())
	if err != nil {
		return err
	}
	defer cat.Close()

	cv, err := cat.ShapeCoverage(cmd.Context(), catalog.Query{DatasetID: shapeDataset, NumBlocks: shapeHeight}, res)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SHAPE\tTOWERS")
	for _, s := range cv.Shapes {
		fmt.Fprintf(w, "%s\t%d\n", s, cv.Counts[s])
	}
	if err := w.Flush(); err != nil {
		return err
	}
	missing := cv.Missing()
	fmt.Printf("%d of %d shapes covered\n", len(cv.Shapes)-len(missing), len(cv.Shapes))
	return nil
}

func newSceneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scene",
		Short: "write the MuJoCo scene of a tower",
		RunE:  runScene,
	}
	addGeneratorFlags(cmd)
	cmd.Flags().StringVar(&towerFile, "tower", "", "tower JSON file (default: generate one)")
	cmd.Flags().StringVarP(&sceneOut, "out", "o", "", "output file (default: stdout)")
	return cmd
}

func runScene(cmd *cobra.Command, args []string) error {
	t, err := startTower(cmd)
	if err != nil {
		return err
	}
	scn, err := scene.Build(t)
	if err != nil {
		return err
	}
	xml, err := scene.MJCF(scn)
	if err != nil {
		return err
	}
	if sceneOut == "" {
		_, err = os.Stdout.Write(xml)
		return err
	}
	if err := os.WriteFile(sceneOut, xml, 0644); err != nil {
		return err
	}
	fmt.Printf("written to %s (static: %v)\n", sceneOut, scn.Static)
	return nil
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "list generator presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%s\n", name, p.Description)
				fmt.Fprintln(w, "  HEIGHT\tSTD\tTRUNCATE\tSIDE")
				for _, h := range p.SortedHeights() {
					gp := p.Heights[h]
					fmt.Fprintf(w, "  %d\t%.3f\t%.2f\t%.2f\n", h, gp.Std, gp.Truncate, gp.SideLength)
				}
			}
			return w.Flush()
		},
	}
}

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "inspect the tower catalog",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list catalog datasets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Open(cfg.Catalog, slog.Default())
			if err != nil {
				return err
			}
			defer cat.Close()

			infos, err := cat.Datasets(cmd.Context())
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Println("no datasets found")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPRESET\tSEED\tTOWERS\tCREATED")
			for _, d := range infos {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", d.ID, d.Preset, d.Seed, d.Towers, d.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [dataset_id]",
		Short: "remove a dataset and its towers from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Open(cfg.Catalog, slog.Default())
			if err != nil {
				return err
			}
			defer cat.Close()
			if err := cat.DeleteDataset(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(listCmd, deleteCmd)
	return cmd
}
