package generator

import (
	"fmt"

	"github.com/harvard-visionlab/block-towers/internal/stability"
	"github.com/harvard-visionlab/block-towers/internal/tower"
)

// Params control the shape of generated towers.
//
// Each block's x (and y when JitterY is set) is drawn from a normal centered
// on the block below with standard deviation Std, truncated to
// ±Truncate*SideLength so a block never sits entirely off its support.
type Params struct {
	NumBlocks  int     `yaml:"num_blocks" json:"num_blocks"`
	SideLength float64 `yaml:"side_length" json:"side_length"`
	Std        float64 `yaml:"std" json:"std"`
	Truncate   float64 `yaml:"truncate" json:"truncate"`
	JitterY    bool    `yaml:"jitter_y" json:"jitter_y"`
}

func (p Params) Validate() error {
	if p.NumBlocks < 1 {
		return fmt.Errorf("%w: num_blocks must be >= 1, got %d", tower.ErrInvalidParam, p.NumBlocks)
	}
	if !(p.SideLength > 0) {
		return fmt.Errorf("%w: side_length must be positive, got %v", tower.ErrInvalidParam, p.SideLength)
	}
	if p.Std < 0 {
		return fmt.Errorf("%w: std must be non-negative, got %v", tower.ErrInvalidParam, p.Std)
	}
	if !(p.Truncate > 0) {
		return fmt.Errorf("%w: truncate must be positive, got %v", tower.ErrInvalidBounds, p.Truncate)
	}
	return nil
}

// WithStd returns a copy of p with a different standard deviation.
func (p Params) WithStd(std float64) Params {
	p.Std = std
	return p
}

// Func produces one labeled tower for the given parameters.
type Func func(p Params) (tower.Tower, error)

// Generator builds random cube towers.
type Generator struct {
	sampler *Sampler
}

func New(sampler *Sampler) *Generator {
	return &Generator{sampler: sampler}
}

// NewSeeded is shorthand for New(NewSampler(seed, maxAttempts)).
func NewSeeded(seed uint64, maxAttempts int) *Generator {
	return New(NewSampler(seed, maxAttempts))
}

// Func exposes Generate as a Func for collectors and calibrators.
func (g *Generator) Func() Func {
	return g.Generate
}

// Generate stacks p.NumBlocks cubes starting at the origin, then labels
// every block with stability.Label.
func (g *Generator) Generate(p Params) (tower.Tower, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	side := p.SideLength
	bound := p.Truncate * side

	t := make(tower.Tower, 0, p.NumBlocks)
	t = append(t, tower.NewBlock(0, 0, side/2, side, side, side))

	for i := 1; i < p.NumBlocks; i++ {
		below := t[i-1]

		x, err := g.sampler.BoundedNormal(below.X, p.Std, -bound, bound)
		if err != nil {
			return nil, fmt.Errorf("block %d x: %w", i, err)
		}

		y := 0.0
		if p.JitterY {
			y, err = g.sampler.BoundedNormal(below.Y, p.Std, -bound, bound)
			if err != nil {
				return nil, fmt.Errorf("block %d y: %w", i, err)
			}
		}

		t = append(t, tower.NewBlock(x, y, below.Z+below.LZ, side, side, side))
	}

	if err := stability.Label(t); err != nil {
		return nil, err
	}
	return t, nil
}
