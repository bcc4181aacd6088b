package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/harvard-visionlab/block-towers/internal/engine"
	"github.com/harvard-visionlab/block-towers/internal/generator"
	"github.com/harvard-visionlab/block-towers/internal/staircase"
	"github.com/harvard-visionlab/block-towers/internal/trajectory"
)

const (
	DefaultSideLength = 0.40
	DefaultNumBlocks  = 4
	DefaultStd        = 0.28
	DefaultTruncate   = 0.65
	DefaultNumSamples = 1000
	DefaultPctFall    = 0.5
	DefaultTestSize   = 0.2
	DefaultBackend    = "kinematic"
	DefaultPreset     = "natural"
	DefaultDataDir    = "runs"
	DefaultCatalog    = "towers.db"
	DefaultLogLevel   = "info"
)

type Config struct {
	Seed       uint64           `yaml:"seed"`
	LogLevel   string           `yaml:"log_level"`
	DataDir    string           `yaml:"data_dir"`
	Catalog    string           `yaml:"catalog"`
	Generator  generator.Params `yaml:"generator"`
	Collector  CollectorConfig  `yaml:"collector"`
	Dataset    DatasetConfig    `yaml:"dataset"`
	Staircase  staircase.Config `yaml:"staircase"`
	Simulation SimulationConfig `yaml:"simulation"`
}

type CollectorConfig struct {
	NumSamples int     `yaml:"num_samples"`
	PctFall    float64 `yaml:"pct_fall"`
	// MaxAttempts caps candidates per batch; 0 means 1000 per sample.
	MaxAttempts int `yaml:"max_attempts"`
	// SamplerAttempts caps redraw rounds of one bounded draw; 0 means the
	// sampler default.
	SamplerAttempts int `yaml:"sampler_attempts"`
}

type DatasetConfig struct {
	Preset     string  `yaml:"preset"`
	Heights    []int   `yaml:"heights"`
	NumSamples int     `yaml:"num_samples"`
	PctFall    float64 `yaml:"pct_fall"`
	TestSize   float64 `yaml:"test_size"`
}

type SimulationConfig struct {
	trajectory.Params `yaml:",inline"`
	Backend           string               `yaml:"backend"`
	Workers           int                  `yaml:"workers"`
	Render            engine.RenderOptions `yaml:"render"`
	// Physics holds backend parameters such as gravity.
	Physics map[string]float64 `yaml:"physics,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Seed:     1,
		LogLevel: DefaultLogLevel,
		DataDir:  DefaultDataDir,
		Catalog:  DefaultCatalog,
		Generator: generator.Params{
			NumBlocks:  DefaultNumBlocks,
			SideLength: DefaultSideLength,
			Std:        DefaultStd,
			Truncate:   DefaultTruncate,
		},
		Collector: CollectorConfig{
			NumSamples: DefaultNumSamples,
			PctFall:    DefaultPctFall,
		},
		Dataset: DatasetConfig{
			Preset:     DefaultPreset,
			Heights:    []int{3, 4, 5, 6},
			NumSamples: DefaultNumSamples,
			PctFall:    DefaultPctFall,
			TestSize:   DefaultTestSize,
		},
		Staircase: staircase.DefaultConfig(),
		Simulation: SimulationConfig{
			Params:  trajectory.DefaultParams(),
			Backend: DefaultBackend,
			Workers: 4,
			Render:  engine.DefaultRenderOptions(),
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if err := c.Generator.Validate(); err != nil {
		return fmt.Errorf("generator: %w", err)
	}
	if err := c.Staircase.Validate(); err != nil {
		return fmt.Errorf("staircase: %w", err)
	}
	if err := c.Simulation.Params.Validate(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	if c.Collector.NumSamples < 1 {
		return fmt.Errorf("collector: num_samples must be >= 1, got %d", c.Collector.NumSamples)
	}
	if c.Collector.PctFall < 0 || c.Collector.PctFall > 1 {
		return fmt.Errorf("collector: pct_fall must be in [0, 1], got %v", c.Collector.PctFall)
	}
	if c.Dataset.TestSize < 0 || c.Dataset.TestSize >= 1 {
		return fmt.Errorf("dataset: test_size must be in [0, 1), got %v", c.Dataset.TestSize)
	}
	if GetPreset(c.Dataset.Preset) == nil {
		return fmt.Errorf("dataset: unknown preset %q (have %v)", c.Dataset.Preset, ListPresets())
	}
	if c.Simulation.Backend == "" {
		return fmt.Errorf("simulation: backend must be set")
	}
	return nil
}
