package export

import (
	"encoding/xml"
	"io"
	"strings"
	"testing"

	"github.com/harvard-visionlab/block-towers/internal/engine"
	"github.com/harvard-visionlab/block-towers/internal/trajectory"
	"github.com/harvard-visionlab/block-towers/internal/viz"
)

func wellFormed(t *testing.T, doc string) {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(doc))
	for {
		_, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return
			}
			t.Fatalf("malformed svg: %v", err)
		}
	}
}

func TestCanvasToSVG(t *testing.T) {
	c := viz.NewCanvas(4, 2)
	c.Set(0, 0)
	c.Set(7, 7)

	svg := CanvasToSVG(c, 2)
	wellFormed(t, svg)
	if n := strings.Count(svg, "<circle"); n != 2 {
		t.Errorf("expected 2 dots, got %d", n)
	}
	if !strings.Contains(svg, `width="16" height="16"`) {
		t.Errorf("unexpected size in %q", svg[:120])
	}
	if CanvasToSVG(nil, 1) != "" {
		t.Error("nil canvas must give empty output")
	}
}

func TestBlockPath(t *testing.T) {
	sim := &trajectory.Simulation{Trajectory: []trajectory.Frame{
		{Data: []engine.Pose{{XYZ: [3]float64{0, 0, 0.2}}, {XYZ: [3]float64{0.1, 0, 0.6}}}},
		{Data: []engine.Pose{{XYZ: [3]float64{0, 0, 0.2}}, {XYZ: [3]float64{0.3, 0, 0.5}}}},
	}}
	pts := BlockPath(sim, 1)
	if len(pts) != 2 || pts[1] != (Point{X: 0.3, Y: 0.5}) {
		t.Errorf("unexpected path %v", pts)
	}
	if len(BlockPath(sim, 5)) != 0 {
		t.Error("missing block must give an empty path")
	}
}

func TestPathToSVG(t *testing.T) {
	svg := PathToSVG([]Point{{0, 1}, {1, 0}, {2, 0}}, 100, 50, "#ff0000")
	wellFormed(t, svg)
	if strings.Count(svg, " L") != 2 {
		t.Errorf("expected two line segments in %q", svg)
	}
	if PathToSVG([]Point{{0, 0}}, 10, 10, "red") != "" {
		t.Error("single point must give empty output")
	}
}
