package viz

import (
	"bytes"
	"image"
	"image/gif"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvard-visionlab/block-towers/internal/engine"
	"github.com/harvard-visionlab/block-towers/internal/scene"
	"github.com/harvard-visionlab/block-towers/internal/tower"
)

func inked(c *Canvas) int {
	n := 0
	for _, row := range c.Grid {
		for _, r := range row {
			if r != brailleBlank {
				n++
			}
		}
	}
	return n
}

func TestCanvasSet(t *testing.T) {
	c := NewCanvas(4, 2)
	assert.Equal(t, 8, c.SubWidth())
	assert.Equal(t, 8, c.SubHeight())

	c.Set(3, 5)
	assert.True(t, c.IsSet(3, 5))
	assert.False(t, c.IsSet(2, 5))

	c.Set(-1, 0)
	c.Set(8, 0)
	c.Set(0, 8)
	assert.Equal(t, 1, inked(c))

	assert.Len(t, strings.Split(strings.TrimSuffix(c.String(), "\n"), "\n"), 2)
}

func TestDrawLineEndpoints(t *testing.T) {
	c := NewCanvas(10, 5)
	c.DrawLine(1, 2, 15, 17)
	assert.True(t, c.IsSet(1, 2))
	assert.True(t, c.IsSet(15, 17))

	c = NewCanvas(10, 5)
	c.FillRect(4, 4, 2, 2)
	for y := 2; y <= 4; y++ {
		for x := 2; x <= 4; x++ {
			assert.True(t, c.IsSet(x, y))
		}
	}
}

func TestRasterize(t *testing.T) {
	c := NewCanvas(2, 1)
	c.Set(0, 0)
	img := c.Rasterize()
	assert.Equal(t, image.Rect(0, 0, 2*CellWidth, CellHeight), img.Bounds())
	assert.Equal(t, uint8(1), img.ColorIndexAt(0, 0))
	assert.Equal(t, uint8(1), img.ColorIndexAt(3, 3))
	assert.Equal(t, uint8(0), img.ColorIndexAt(4, 0))
	assert.Equal(t, uint8(0), img.ColorIndexAt(0, 4))
}

func TestProject(t *testing.T) {
	cam := LookAt(Vec3{0, -5, 0}, Vec3{}, 45)
	x, y, depth, ok := cam.Project(Vec3{}, 100, 80)
	assert.True(t, ok)
	assert.Equal(t, 50, x)
	assert.Equal(t, 40, y)
	assert.InDelta(t, 5, depth, 1e-9)

	_, _, _, ok = cam.Project(Vec3{0, -10, 0}, 100, 80)
	assert.False(t, ok, "behind the camera")
}

func TestTowerView(t *testing.T) {
	assert.Equal(t, 0, inked(TowerView(nil, 40, 12)))

	stable := tower.Tower{{Z: 0.5, LX: 1, LY: 1, LZ: 1}}
	c := TowerView(stable, 40, 12)
	assert.True(t, c.IsSet(40, 45), "stable blocks are filled")
	assert.True(t, c.IsSet(0, 47), "floor line")

	unstable := tower.Tower{{Z: 0.5, LX: 1, LY: 1, LZ: 1, Unstable: true}}
	c = TowerView(unstable, 40, 12)
	assert.False(t, c.IsSet(40, 45), "unstable blocks are outlined")
	assert.True(t, c.IsSet(38, 45))
}

func TestSceneView(t *testing.T) {
	cam := scene.Camera{Pos: [3]float64{0, -3, 1}, Target: [3]float64{0, 0, 0.2}, FovY: 45}
	floorOnly := SceneView(nil, nil, cam, 40, 20)
	withBox := SceneView(
		[][3]float64{{0.4, 0.4, 0.4}},
		[]engine.Pose{{Name: "block0", XYZ: [3]float64{0, 0, 0.2}, XMat: engine.Identity}},
		cam, 40, 20,
	)
	assert.Positive(t, inked(floorOnly))
	assert.Greater(t, inked(withBox), inked(floorOnly))
}

func TestFrameDelay(t *testing.T) {
	assert.Equal(t, 4, FrameDelay(25))
	assert.Equal(t, 2, FrameDelay(0))
	assert.Equal(t, 1, FrameDelay(1000))
}

func TestEncodeGIF(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, EncodeGIF(&buf, nil, 4))

	a, b := NewCanvas(4, 2), NewCanvas(4, 2)
	b.Set(1, 1)
	require.NoError(t, EncodeGIF(&buf, []image.Image{a.Rasterize(), b.Rasterize()}, 4))

	anim, err := gif.DecodeAll(&buf)
	require.NoError(t, err)
	assert.Len(t, anim.Image, 2)
	assert.Equal(t, []int{4, 4}, anim.Delay)
}

func series() CalibrationSeries {
	return CalibrationSeries{
		Title:     "4 blocks",
		Std:       []float64{0.1, 0.11, 0.12, 0.11, 0.12},
		Prob:      []float64{0.3, 0.4, 0.6, 0.45, 0.55},
		Reversals: []bool{false, false, true, true, true},
		Estimate:  0.115,
	}
}

func TestCalibrationCharts(t *testing.T) {
	_, err := CalibrationASCII(CalibrationSeries{}, 40, 10)
	assert.ErrorIs(t, err, errNoData)

	bad := series()
	bad.Prob = bad.Prob[:2]
	_, err = CalibrationASCII(bad, 40, 10)
	assert.Error(t, err)

	out, err := CalibrationASCII(series(), 40, 10)
	require.NoError(t, err)
	assert.Contains(t, out, "std estimate 0.115")

	var html bytes.Buffer
	require.NoError(t, CalibrationHTML(&html, series()))
	assert.Contains(t, html.String(), "echarts")

	path := filepath.Join(t.TempDir(), "calibration.png")
	require.NoError(t, CalibrationPNG(path, series()))
	assert.FileExists(t, path)
}

func TestHeightsASCII(t *testing.T) {
	_, err := HeightsASCII(nil, nil, 40, 10, "")
	assert.ErrorIs(t, err, errNoData)

	out, err := HeightsASCII([]string{"block0", "block1"}, [][]float64{{0.1, 0.1, 0.1}, {0.3, 0.2, 0.1}}, 30, 8, "heights")
	require.NoError(t, err)
	assert.Contains(t, out, "heights")
}
