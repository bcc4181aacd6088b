package viz

import (
	"github.com/harvard-visionlab/block-towers/internal/engine"
	"github.com/harvard-visionlab/block-towers/internal/scene"
)

// FloorHalf and FloorLines size the ground grid drawn under every scene.
const (
	FloorHalf  = 1.0
	FloorLines = 9
)

// SceneView draws boxes of the given full sizes at poses through cam on a
// cols x rows canvas. sizes and poses are matched by index.
func SceneView(sizes [][3]float64, poses []engine.Pose, cam scene.Camera, cols, rows int) *Canvas {
	w := NewWireframe()
	w.AddFloor(FloorHalf, FloorLines)
	for i, p := range poses {
		if i >= len(sizes) {
			break
		}
		w.AddBox(vec3(p.XYZ), vec3(sizes[i]), p.XMat)
	}

	c := NewCanvas(cols, rows)
	Render3D(c, w, LookAt(vec3(cam.Pos), vec3(cam.Target), cam.FovY))
	return c
}

func vec3(v [3]float64) Vec3 { return Vec3{X: v[0], Y: v[1], Z: v[2]} }
