package trajectory

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/harvard-visionlab/block-towers/internal/engine"
	"github.com/harvard-visionlab/block-towers/internal/scene"
	"github.com/harvard-visionlab/block-towers/internal/tower"
)

// Position is a body center.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Simulation is a recorded run of one tower.
type Simulation struct {
	Params         Params      `json:"params"`
	StartPositions tower.Tower `json:"start_positions"`
	FinalPositions []Position  `json:"final_positions"`
	Trajectory     []Frame     `json:"trajectory"`
}

// Engine builds a fresh engine for the simulation's start positions.
func (s *Simulation) Engine(factory engine.Factory) (engine.Engine, error) {
	scn, err := scene.Build(s.StartPositions)
	if err != nil {
		return nil, err
	}
	return factory(scn)
}

// Replay re-runs the simulation on a fresh engine and renders every frame.
func (s *Simulation) Replay(ctx context.Context, factory engine.Factory, opts engine.RenderOptions) ([]image.Image, error) {
	eng, err := s.Engine(factory)
	if err != nil {
		return nil, err
	}
	return Replay(ctx, s.Trajectory, s.Params.Timestep, eng, opts)
}

// Generate scales start by p.ScaleFactor, builds its scene and records a
// trajectory. Frames are rendered when render is non-nil.
func Generate(ctx context.Context, start tower.Tower, factory engine.Factory, p Params, render *engine.RenderOptions) (*Simulation, []image.Image, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}

	scaled := start.Scaled(p.ScaleFactor)
	scn, err := scene.Build(scaled)
	if err != nil {
		return nil, nil, err
	}
	eng, err := factory(scn)
	if err != nil {
		return nil, nil, fmt.Errorf("create engine: %w", err)
	}

	frames, images, err := Record(ctx, eng, p, render)
	if err != nil {
		return nil, nil, err
	}
	if len(frames) == 0 {
		return nil, nil, errors.New("simulation recorded no frames")
	}

	last := frames[len(frames)-1].Data
	final := make([]Position, len(last))
	for i, pose := range last {
		final[i] = Position{X: pose.XYZ[0], Y: pose.XYZ[1], Z: pose.XYZ[2]}
	}

	return &Simulation{
		Params:         p,
		StartPositions: scaled,
		FinalPositions: final,
		Trajectory:     frames,
	}, images, nil
}

// Batch simulates towers with up to workers goroutines. Every task builds its
// own engine; engines are never shared between goroutines. Results keep the
// order of towers. onDone, if set, is called after each finished simulation.
func Batch(ctx context.Context, towers []tower.Tower, factory engine.Factory, p Params, workers int, onDone func(done, total int)) ([]*Simulation, error) {
	if workers < 1 {
		workers = 1
	}

	results := make([]*Simulation, len(towers))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	done := 0

	for i, t := range towers {
		g.Go(func() error {
			sim, _, err := Generate(ctx, t, factory, p, nil)
			if err != nil {
				return fmt.Errorf("tower %d: %w", i, err)
			}
			results[i] = sim

			if onDone != nil {
				mu.Lock()
				done++
				onDone(done, len(towers))
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
