package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/harvard-visionlab/block-towers/internal/config"
	"github.com/harvard-visionlab/block-towers/internal/engine"
	"github.com/harvard-visionlab/block-towers/internal/generator"
	"github.com/harvard-visionlab/block-towers/internal/physics"
	"github.com/harvard-visionlab/block-towers/internal/storage"
	"github.com/harvard-visionlab/block-towers/internal/tui"
)

var (
	cfg *config.Config

	configFile  string
	dataDir     string
	catalogPath string
	seed        uint64
	logLevel    string
	noTUI       bool
	theme       string

	// generator overrides shared by generate, collect, calibrate and simulate
	numBlocks  int
	std        float64
	truncate   float64
	sideLength float64
	jitterY    bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "towersim",
		Short:         "block tower generation, calibration and simulation",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&dataDir, "data", config.DefaultDataDir, "run data directory")
	pf.StringVar(&catalogPath, "catalog", config.DefaultCatalog, "tower catalog database")
	pf.Uint64Var(&seed, "seed", 1, "random seed")
	pf.StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	pf.BoolVar(&noTUI, "no-tui", false, "log progress instead of showing the progress view")
	pf.StringVar(&theme, "theme", tui.ThemeDefault.Name, fmt.Sprintf("terminal theme %v", tui.ThemeNames()))

	rootCmd.AddCommand(
		newGenerateCmd(),
		newCollectCmd(),
		newDatasetCmd(),
		newCalibrateCmd(),
		newSimulateCmd(),
		newReplayCmd(),
		newBatchCmd(),
		newListCmd(),
		newShowCmd(),
		newShapesCmd(),
		newSceneCmd(),
		newPresetsCmd(),
		newCatalogCmd(),
	)
	return rootCmd
}

// setup loads the config, applies global flag overrides and installs the
// default logger.
func setup(cmd *cobra.Command) error {
	var err error
	if configFile != "" {
		cfg, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	flags := cmd.Flags()
	if flags.Changed("data") || configFile == "" {
		cfg.DataDir = dataDir
	}
	if flags.Changed("catalog") || configFile == "" {
		cfg.Catalog = catalogPath
	}
	if flags.Changed("seed") || configFile == "" {
		cfg.Seed = seed
	}
	if flags.Changed("log-level") || configFile == "" {
		cfg.LogLevel = logLevel
	}

	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
			NoColor:    !terminal(os.Stderr),
		}),
	))
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// addGeneratorFlags registers the generator overrides on cmd.
func addGeneratorFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&numBlocks, "blocks", config.DefaultNumBlocks, "blocks per tower")
	f.Float64Var(&std, "std", config.DefaultStd, "std of the x offset between blocks")
	f.Float64Var(&truncate, "truncate", config.DefaultTruncate, "offset bound as a fraction of the side length")
	f.Float64Var(&sideLength, "side", config.DefaultSideLength, "block side length")
	f.BoolVar(&jitterY, "jitter-y", false, "also offset blocks along y")
}

// generatorParams returns the configured generator params with any changed
// flags applied.
func generatorParams(cmd *cobra.Command) (generator.Params, error) {
	p := cfg.Generator
	f := cmd.Flags()
	if f.Changed("blocks") {
		p.NumBlocks = numBlocks
	}
	if f.Changed("std") {
		p.Std = std
	}
	if f.Changed("truncate") {
		p.Truncate = truncate
	}
	if f.Changed("side") {
		p.SideLength = sideLength
	}
	if f.Changed("jitter-y") {
		p.JitterY = jitterY
	}
	return p, p.Validate()
}

func newGenerator() *generator.Generator {
	return generator.NewSeeded(cfg.Seed, cfg.Collector.SamplerAttempts)
}

func newStore() (*storage.Store, error) {
	st := storage.New(cfg.DataDir)
	return st, st.Init()
}

// engineFactory resolves the configured backend with its physics params.
func engineFactory() (engine.Factory, error) {
	reg := engine.NewRegistry()
	physics.Register(reg)
	f, err := reg.Get(cfg.Simulation.Backend)
	if err != nil {
		return nil, err
	}
	return engine.WithParams(f, cfg.Simulation.Physics), nil
}

// interactive reports whether the progress view can take over the terminal.
var interactive = func() bool { return terminal(os.Stdin, os.Stderr) }

func terminal(files ...*os.File) bool {
	for _, f := range files {
		if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
			return false
		}
	}
	return true
}

// runJob runs job behind the progress view, or with log lines when the view
// is disabled or no terminal is attached.
func runJob(cmd *cobra.Command, title string, job tui.Job) error {
	if noTUI || !interactive() {
		return job(cmd.Context(), logReport(title))
	}
	return tui.Run(cmd.Context(), os.Stderr, title, tui.GetTheme(theme), job)
}

// logReport logs every 100th event and the final one of each stage.
func logReport(title string) tui.Report {
	n := 0
	return func(e tui.Event) {
		n++
		if n%100 != 0 && e.Done != e.Total {
			return
		}
		slog.Info(title, "stage", e.Stage, "done", e.Done, "total", e.Total, "status", e.Status)
	}
}
