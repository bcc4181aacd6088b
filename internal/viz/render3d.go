package viz

import (
	"math"
	"sort"
)

type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Length() float64      { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }
func (v Vec3) Normalize() Vec3 {
	if l := v.Length(); l != 0 {
		return v.Scale(1 / l)
	}
	return Vec3{}
}
func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{v.Y*o.Z - v.Z*o.Y, v.Z*o.X - v.X*o.Z, v.X*o.Y - v.Y*o.X}
}

// Camera is a pinhole camera in a z-up world.
type Camera struct {
	Position, Target Vec3
	FOV              float64 // vertical, radians
	Near             float64

	right, up, forward Vec3
}

// LookAt builds a camera at pos aimed at target with a vertical field of
// view given in degrees.
func LookAt(pos, target Vec3, fovDeg float64) *Camera {
	c := &Camera{Position: pos, Target: target, FOV: fovDeg * math.Pi / 180, Near: 0.01}
	c.forward = target.Sub(pos).Normalize()
	c.right = c.forward.Cross(Vec3{0, 0, 1}).Normalize()
	if c.right.Length() == 0 {
		c.right = Vec3{1, 0, 0}
	}
	c.up = c.right.Cross(c.forward)
	return c
}

// Project converts world coordinates to sub-pixel screen coordinates on an
// sw x sh surface. Returns x, y, depth, and visibility.
func (c *Camera) Project(p Vec3, sw, sh int) (int, int, float64, bool) {
	rel := p.Sub(c.Position)
	depth := rel.Dot(c.forward)
	if depth <= c.Near {
		return 0, 0, 0, false
	}
	focal := float64(sh) / 2 / math.Tan(c.FOV/2)
	sx := int(math.Round(float64(sw)/2 + rel.Dot(c.right)*focal/depth))
	sy := int(math.Round(float64(sh)/2 - rel.Dot(c.up)*focal/depth))
	return sx, sy, depth, sx >= 0 && sx < sw && sy >= 0 && sy < sh
}

type Edge struct {
	Start, End Vec3
}

type Wireframe struct{ Edges []Edge }

func NewWireframe() *Wireframe         { return &Wireframe{Edges: make([]Edge, 0)} }
func (w *Wireframe) AddEdge(s, e Vec3) { w.Edges = append(w.Edges, Edge{s, e}) }

type ProjectedEdge struct {
	X1, Y1, X2, Y2 int
	Depth          float64
}

// Render3D draws the wireframe to the canvas, far edges first.
func Render3D(c *Canvas, w *Wireframe, cam *Camera) {
	if c == nil || w == nil || cam == nil {
		return
	}
	sw, sh := c.SubWidth(), c.SubHeight()
	proj := make([]ProjectedEdge, 0, len(w.Edges))
	for _, e := range w.Edges {
		x1, y1, d1, v1 := cam.Project(e.Start, sw, sh)
		x2, y2, d2, v2 := cam.Project(e.End, sw, sh)
		if (v1 || v2) && d1 > 0 && d2 > 0 {
			proj = append(proj, ProjectedEdge{x1, y1, x2, y2, (d1 + d2) / 2})
		}
	}
	sort.Slice(proj, func(i, j int) bool { return proj[i].Depth > proj[j].Depth })
	for _, e := range proj {
		if e.X1 == e.X2 && e.Y1 == e.Y2 {
			c.Set(e.X1, e.Y1)
		} else {
			c.DrawLine(e.X1, e.Y1, e.X2, e.Y2)
		}
	}
}

var boxEdges = [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}, {4, 5}, {5, 6}, {6, 7}, {7, 4}, {0, 4}, {1, 5}, {2, 6}, {3, 7}}

// AddBox adds the 12 edges of a box with the given center, full size and
// row-major orientation matrix.
func (w *Wireframe) AddBox(center, size Vec3, mat [9]float64) {
	hx, hy, hz := size.X/2, size.Y/2, size.Z/2
	local := []Vec3{{-hx, -hy, -hz}, {hx, -hy, -hz}, {hx, hy, -hz}, {-hx, hy, -hz}, {-hx, -hy, hz}, {hx, -hy, hz}, {hx, hy, hz}, {-hx, hy, hz}}
	world := make([]Vec3, len(local))
	for i, v := range local {
		world[i] = center.Add(Vec3{
			mat[0]*v.X + mat[1]*v.Y + mat[2]*v.Z,
			mat[3]*v.X + mat[4]*v.Y + mat[5]*v.Z,
			mat[6]*v.X + mat[7]*v.Y + mat[8]*v.Z,
		})
	}
	for _, e := range boxEdges {
		w.AddEdge(world[e[0]], world[e[1]])
	}
}

// AddFloor adds a square grid on z=0 spanning [-half, half] in x and y.
func (w *Wireframe) AddFloor(half float64, lines int) {
	if lines < 2 {
		lines = 2
	}
	for i := 0; i < lines; i++ {
		v := -half + 2*half*float64(i)/float64(lines-1)
		w.AddEdge(Vec3{v, -half, 0}, Vec3{v, half, 0})
		w.AddEdge(Vec3{-half, v, 0}, Vec3{half, v, 0})
	}
}
