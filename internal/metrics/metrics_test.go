package metrics

import (
	"math"
	"testing"

	"github.com/harvard-visionlab/block-towers/internal/engine"
	"github.com/harvard-visionlab/block-towers/internal/trajectory"
)

// frames builds a two-block trajectory where the top block slides along x
// by dx per frame for moving frames and then stays put.
func frames(n, moving int, dx float64) *trajectory.Simulation {
	sim := &trajectory.Simulation{}
	x := 0.0
	for i := 0; i < n; i++ {
		if i > 0 && i <= moving {
			x += dx
		}
		sim.Trajectory = append(sim.Trajectory, trajectory.Frame{
			VideoFrame: i,
			VideoT:     float64(i) / 10,
			Data: []engine.Pose{
				{Name: "box0", XYZ: [3]float64{0, 0, 0.2}},
				{Name: "box1", XYZ: [3]float64{x, 0, 0.6 - x/2}},
			},
		})
	}
	return sim
}

func TestEvaluate(t *testing.T) {
	sim := frames(10, 4, 0.1)
	got := Evaluate(sim, Default()...)

	want := map[string]float64{
		"max_displacement": math.Sqrt(0.4*0.4 + 0.2*0.2),
		"top_drop":         0.2,
		"fallen_blocks":    1,
		"settle_time":      0.4,
	}
	for name, v := range want {
		if math.Abs(got[name]-v) > 1e-9 {
			t.Errorf("%s = %v, want %v", name, got[name], v)
		}
	}
}

func TestEvaluateStatic(t *testing.T) {
	got := Evaluate(frames(5, 0, 0.1), Default()...)
	for name, v := range got {
		if v != 0 {
			t.Errorf("%s = %v on a static tower, want 0", name, v)
		}
	}
}

func TestEvaluateResets(t *testing.T) {
	ms := Default()
	Evaluate(frames(10, 4, 0.1), ms...)
	got := Evaluate(frames(5, 0, 0.1), ms...)
	if got["fallen_blocks"] != 0 || got["max_displacement"] != 0 {
		t.Errorf("metrics kept state between runs: %v", got)
	}
}

func TestFallenBlocksThreshold(t *testing.T) {
	m := NewFallenBlocks(0.5)
	got := Evaluate(frames(10, 4, 0.1), m)
	if got["fallen_blocks"] != 0 {
		t.Errorf("expected no block past 0.5, got %v", got["fallen_blocks"])
	}
}
