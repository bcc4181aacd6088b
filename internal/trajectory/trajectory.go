package trajectory

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/harvard-visionlab/block-towers/internal/engine"
	"github.com/harvard-visionlab/block-towers/internal/tower"
)

// Params control how a simulation is stepped and sampled.
type Params struct {
	Duration    float64 `yaml:"duration" json:"duration"`
	Framerate   float64 `yaml:"framerate" json:"framerate"`
	Timestep    float64 `yaml:"timestep" json:"timestep"`
	ScaleFactor float64 `yaml:"scale_factor" json:"scale_factor"`
}

func DefaultParams() Params {
	return Params{Duration: 3, Framerate: 60, Timestep: 0.001, ScaleFactor: 1}
}

func (p Params) Validate() error {
	if !(p.Duration > 0) || math.IsInf(p.Duration, 0) {
		return fmt.Errorf("%w: duration must be positive and finite, got %v", tower.ErrInvalidParam, p.Duration)
	}
	if !(p.Framerate > 0) {
		return fmt.Errorf("%w: framerate must be positive, got %v", tower.ErrInvalidParam, p.Framerate)
	}
	if !(p.Timestep > 0) {
		return fmt.Errorf("%w: timestep must be positive, got %v", tower.ErrInvalidParam, p.Timestep)
	}
	if !(p.ScaleFactor > 0) || math.IsInf(p.ScaleFactor, 0) {
		return fmt.Errorf("%w: scale_factor must be positive and finite, got %v", tower.ErrInvalidParam, p.ScaleFactor)
	}
	return nil
}

// Frame is one video-rate snapshot of every body.
type Frame struct {
	PhysicsStep int           `json:"physics_step"`
	T           float64       `json:"t"`
	VideoFrame  int           `json:"video_frame"`
	VideoT      float64       `json:"video_t"`
	Data        []engine.Pose `json:"data"`
}

// Record resets eng and steps it until its time reaches p.Duration. Before
// each step, if fewer frames exist than time*framerate allows, a snapshot is
// appended, so frame i is taken at the first step whose time reaches
// i/framerate. When render is non-nil every snapshot is also rendered.
func Record(ctx context.Context, eng engine.Engine, p Params, render *engine.RenderOptions) ([]Frame, []image.Image, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}

	eng.SetTimestep(p.Timestep)
	if err := eng.Reset(); err != nil {
		return nil, nil, fmt.Errorf("reset engine: %w", err)
	}

	frames := make([]Frame, 0, int(p.Duration*p.Framerate)+1)
	images := make([]image.Image, 0)
	names := eng.Bodies()
	step := 0

	for eng.Time() < p.Duration {
		select {
		case <-ctx.Done():
			return frames, images, ctx.Err()
		default:
		}

		if float64(len(frames)) <= eng.Time()*p.Framerate {
			if render != nil {
				img, err := eng.Render(*render)
				if err != nil {
					return frames, images, fmt.Errorf("render frame %d: %w", len(frames), err)
				}
				images = append(images, img)
			}

			data, err := snapshot(eng, names)
			if err != nil {
				return frames, images, fmt.Errorf("frame %d: %w", len(frames), err)
			}
			idx := len(frames)
			frames = append(frames, Frame{
				PhysicsStep: step,
				T:           eng.Time(),
				VideoFrame:  idx,
				VideoT:      float64(idx) * (1 / p.Framerate),
				Data:        data,
			})
		}

		if err := eng.Step(); err != nil {
			return frames, images, fmt.Errorf("physics step %d: %w", step, err)
		}
		step++
	}

	return frames, images, nil
}

func snapshot(eng engine.Engine, names []string) ([]engine.Pose, error) {
	data := make([]engine.Pose, len(names))
	for i, name := range names {
		p, err := eng.Pose(name)
		if err != nil {
			return nil, err
		}
		data[i] = p
	}
	return data, nil
}

// Replay resets eng and walks it through frames. The engine is single-stepped
// until its step count equals each frame's PhysicsStep, where its time must
// equal the recorded T exactly. The stored poses then overwrite the engine
// state before the frame is rendered. Any disagreement aborts with a
// *SyncError.
func Replay(ctx context.Context, frames []Frame, timestep float64, eng engine.Engine, opts engine.RenderOptions) ([]image.Image, error) {
	if !(timestep > 0) {
		return nil, fmt.Errorf("%w: timestep must be positive, got %v", tower.ErrInvalidParam, timestep)
	}

	eng.SetTimestep(timestep)
	if err := eng.Reset(); err != nil {
		return nil, fmt.Errorf("reset engine: %w", err)
	}

	images := make([]image.Image, 0, len(frames))
	step := 0

	for i, f := range frames {
		select {
		case <-ctx.Done():
			return images, ctx.Err()
		default:
		}

		if f.VideoFrame != i {
			return images, &SyncError{Frame: i, Reason: fmt.Sprintf("video frame index %d", f.VideoFrame)}
		}

		for step < f.PhysicsStep {
			if err := eng.Step(); err != nil {
				return images, fmt.Errorf("physics step %d: %w", step, err)
			}
			step++
		}

		if step != f.PhysicsStep {
			return images, &SyncError{Frame: i, WantStep: f.PhysicsStep, GotStep: step, WantTime: f.T, GotTime: eng.Time(), Reason: "physics step"}
		}
		if eng.Time() != f.T {
			return images, &SyncError{Frame: i, WantStep: f.PhysicsStep, GotStep: step, WantTime: f.T, GotTime: eng.Time(), Reason: "time"}
		}

		for _, pose := range f.Data {
			if err := eng.SetPose(pose); err != nil {
				return images, fmt.Errorf("frame %d: %w", i, err)
			}
		}

		img, err := eng.Render(opts)
		if err != nil {
			return images, fmt.Errorf("render frame %d: %w", i, err)
		}
		images = append(images, img)
	}

	if len(images) != len(frames) {
		return images, &SyncError{Frame: len(images), Reason: fmt.Sprintf("rendered %d of %d frames", len(images), len(frames))}
	}
	return images, nil
}
