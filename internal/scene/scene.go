// Package scene turns a labeled tower into a physics scene description and
// exports it as MuJoCo MJCF XML.
package scene

import (
	"fmt"

	"github.com/harvard-visionlab/block-towers/internal/tower"
)

// Palette is cycled over the blocks of a tower, bottom first.
var Palette = [][4]float64{
	{1, 0, 0, 1},
	{1, 1, 0, 1},
	{1, 0, 1, 1},
	{0, 1, 1, 1},
	{0, 0, 1, 1},
	{0, 1, 0, 1},
}

// Body is one block in a scene.
type Body struct {
	Name  string
	Block tower.Block
	RGBA  [4]float64
}

// Camera looks from Pos at Target with a vertical field of view in degrees.
type Camera struct {
	Name   string
	Pos    [3]float64
	Target [3]float64
	FovY   float64
}

// Scene describes a tower world. A Static scene never moves: a stable tower
// is rendered as fixed geometry because simulating a perfectly balanced stack
// tends to drift.
type Scene struct {
	Bodies []Body
	Static bool
	Camera Camera
}

// BodyName is the scene name of block i.
func BodyName(i int) string {
	return fmt.Sprintf("box%d", i)
}

// Build validates t and lays it out as a scene. The scene is static unless
// some block is labeled unstable.
func Build(t tower.Tower) (Scene, error) {
	if err := t.Validate(); err != nil {
		return Scene{}, err
	}

	bodies := make([]Body, len(t))
	for i, b := range t {
		bodies[i] = Body{
			Name:  BodyName(i),
			Block: b,
			RGBA:  Palette[i%len(Palette)],
		}
	}

	return Scene{
		Bodies: bodies,
		Static: !t.AnyUnstable(),
		Camera: DefaultCamera(t[0]),
	}, nil
}

// DefaultCamera frames a tower from the front, scaled to its bottom block.
func DefaultCamera(bottom tower.Block) Camera {
	side := max(bottom.LX, bottom.LY, bottom.LZ)
	return Camera{
		Name:   "closeup",
		Pos:    [3]float64{0, -side * 10, side},
		Target: [3]float64{0, 0, side * 2},
		FovY:   45,
	}
}

// Tower returns the scene's blocks in order.
func (s Scene) Tower() tower.Tower {
	t := make(tower.Tower, len(s.Bodies))
	for i, b := range s.Bodies {
		t[i] = b.Block
	}
	return t.Clone()
}
