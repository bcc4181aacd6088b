package tower

import "math"

// Block is a rectangular prism. X, Y, Z locate its center; LX, LY, LZ are
// full side lengths (not half extents). Mass and Density are optional and
// ignored by the analytical stability check.
type Block struct {
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Z        float64  `json:"z"`
	LX       float64  `json:"lx"`
	LY       float64  `json:"ly"`
	LZ       float64  `json:"lz"`
	RX       float64  `json:"rx"`
	RY       float64  `json:"ry"`
	RZ       float64  `json:"rz"`
	Mass     *float64 `json:"mass,omitempty"`
	Density  *float64 `json:"density,omitempty"`
	Unstable bool     `json:"unstable"`
}

// NewBlock returns an unrotated block without mass information.
func NewBlock(x, y, z, lx, ly, lz float64) Block {
	return Block{X: x, Y: y, Z: z, LX: lx, LY: ly, LZ: lz}
}

// Footprint returns the axis-aligned support rectangle of the block in the x-y plane.
func (b Block) Footprint() (minX, maxX, minY, maxY float64) {
	return b.X - b.LX/2, b.X + b.LX/2, b.Y - b.LY/2, b.Y + b.LY/2
}

// Tower is a stack of blocks; index 0 rests on the ground.
type Tower []Block

func (t Tower) Clone() Tower {
	c := make(Tower, len(t))
	copy(c, t)
	for i := range c {
		if t[i].Mass != nil {
			m := *t[i].Mass
			c[i].Mass = &m
		}
		if t[i].Density != nil {
			d := *t[i].Density
			c[i].Density = &d
		}
	}
	return c
}

// AnyUnstable reports whether any block carries the unstable label.
func (t Tower) AnyUnstable() bool {
	for _, b := range t {
		if b.Unstable {
			return true
		}
	}
	return false
}

// Scaled returns a copy with positions and side lengths divided by factor.
// Labels and orientations are left untouched.
func (t Tower) Scaled(factor float64) Tower {
	c := t.Clone()
	if factor == 1 {
		return c
	}
	for i := range c {
		c[i].X /= factor
		c[i].Y /= factor
		c[i].Z /= factor
		c[i].LX /= factor
		c[i].LY /= factor
		c[i].LZ /= factor
	}
	return c
}

// Validate checks the preconditions every analysis relies on: at least one
// block, finite coordinates, strictly positive side lengths and a
// non-decreasing stacking order in z.
func (t Tower) Validate() error {
	if len(t) == 0 {
		return ErrEmptyTower
	}
	for i, b := range t {
		coords := [...]struct {
			name string
			v    float64
		}{{"x", b.X}, {"y", b.Y}, {"z", b.Z}}
		for _, c := range coords {
			if math.IsNaN(c.v) || math.IsInf(c.v, 0) {
				return &BlockError{Index: i, Field: c.name, Value: c.v, Wrapped: ErrInvalidDimension}
			}
		}
		dims := [...]struct {
			name string
			v    float64
		}{{"lx", b.LX}, {"ly", b.LY}, {"lz", b.LZ}}
		for _, d := range dims {
			if !(d.v > 0) || math.IsInf(d.v, 0) {
				return &BlockError{Index: i, Field: d.name, Value: d.v, Wrapped: ErrInvalidDimension}
			}
		}
		if i > 0 && b.Z < t[i-1].Z {
			return &BlockError{Index: i, Field: "z", Value: b.Z, Wrapped: ErrInvalidDimension}
		}
	}
	return nil
}
