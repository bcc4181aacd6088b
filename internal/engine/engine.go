// Package engine defines the contract between the trajectory synchronizer
// and a physics backend, plus a registry that selects backends by name.
package engine

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/harvard-visionlab/block-towers/internal/scene"
)

// ErrUnknownBody is returned when a pose is requested for a body the scene
// does not contain.
var ErrUnknownBody = errors.New("engine: unknown body")

// Pose is the world position and row-major 3x3 orientation of a body.
type Pose struct {
	Name string     `json:"name"`
	XYZ  [3]float64 `json:"xyz"`
	XMat [9]float64 `json:"xmat"`
}

// Identity is the orientation matrix of an unrotated body.
var Identity = [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}

// RenderOptions select the output image size and camera.
type RenderOptions struct {
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
	Camera string `yaml:"camera" json:"camera"`
}

func DefaultRenderOptions() RenderOptions {
	return RenderOptions{Width: 480, Height: 360, Camera: "closeup"}
}

// Engine steps a scene forward in fixed time increments. Implementations are
// not safe for concurrent use.
type Engine interface {
	SetTimestep(dt float64)
	// Reset restores the initial scene and sets time to zero.
	Reset() error
	Step() error
	Time() float64
	// Bodies lists body names in scene order.
	Bodies() []string
	Pose(name string) (Pose, error)
	// SetPose overwrites a body's pose without advancing time.
	SetPose(p Pose) error
	Render(opts RenderOptions) (image.Image, error)
}

// Factory builds a fresh engine for a scene.
type Factory func(s scene.Scene) (Engine, error)

// Registry maps backend names to factories.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

func (r *Registry) Get(name string) (Factory, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown engine backend: %s (have %v)", name, r.List())
	}
	return f, nil
}

func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Configurable engines expose tunable model parameters.
type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

// WithParams wraps f so every engine it builds gets params applied. Engines
// that are not Configurable reject a non-empty params map.
func WithParams(f Factory, params map[string]float64) Factory {
	if len(params) == 0 {
		return f
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(s scene.Scene) (Engine, error) {
		eng, err := f(s)
		if err != nil {
			return nil, err
		}
		c, ok := eng.(Configurable)
		if !ok {
			return nil, fmt.Errorf("engine %T has no tunable params", eng)
		}
		for _, name := range names {
			if err := c.SetParam(name, params[name]); err != nil {
				return nil, err
			}
		}
		return eng, nil
	}
}
