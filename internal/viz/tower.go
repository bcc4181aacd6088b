package viz

import (
	"math"

	"github.com/harvard-visionlab/block-towers/internal/tower"
)

// TowerView draws a side view (x against z) of t on a w x h cell canvas.
// Stable blocks are filled and unstable blocks are drawn as outlines. The
// view spans five bottom-block widths either side of the origin, widened if
// a block would not fit.
func TowerView(t tower.Tower, w, h int) *Canvas {
	c := NewCanvas(w, h)
	if len(t) == 0 || w <= 0 || h <= 0 {
		return c
	}

	halfX := 5 * t[0].LX
	top := 10 * t[0].LZ
	for _, b := range t {
		halfX = math.Max(halfX, math.Abs(b.X)+b.LX)
		top = math.Max(top, b.Z+b.LZ)
	}

	sw, sh := c.SubWidth(), c.SubHeight()
	scale := math.Min(float64(sw)/(2*halfX), float64(sh)/top)
	toX := func(x float64) int { return int(math.Round(float64(sw)/2 + x*scale)) }
	toY := func(z float64) int { return sh - 1 - int(math.Round(z*scale)) }

	c.DrawLine(0, sh-1, sw-1, sh-1)
	for _, b := range t {
		x0, x1 := toX(b.X-b.LX/2), toX(b.X+b.LX/2)-1
		y0, y1 := toY(b.Z+b.LZ/2)+1, toY(b.Z-b.LZ/2)-1
		if b.Unstable {
			c.DrawLine(x0, y0, x1, y0)
			c.DrawLine(x1, y0, x1, y1)
			c.DrawLine(x1, y1, x0, y1)
			c.DrawLine(x0, y1, x0, y0)
			continue
		}
		c.FillRect(x0, y0, x1, y1)
	}
	return c
}
