package physics

import (
	"fmt"
	"image"
	"math"

	"github.com/harvard-visionlab/block-towers/internal/engine"
	"github.com/harvard-visionlab/block-towers/internal/scene"
	"github.com/harvard-visionlab/block-towers/internal/viz"
)

// Backend is the registry name of the kinematic engine.
const Backend = "kinematic"

// DefaultTimestep matches the usual 1 ms physics step.
const DefaultTimestep = 0.001

type phase int

const (
	resting phase = iota
	tipping
	flying
	settled
)

type body struct {
	name  string
	size  [3]float64
	start [3]float64

	pos   [3]float64
	vel   [3]float64
	angle float64 // signed rotation toward +axis
	omega float64
	mat   [9]float64
	phase phase
}

// Kinematic is a deterministic stand-in for a rigid-body engine. Stable
// scenes never move. In a dynamic scene every block from the lowest unstable
// one upward tips as a rigid group about the overhung edge of the block
// below. Past ReleaseAngle the blocks separate and fall ballistically until
// they come to rest flat on the ground or on the untouched part of the tower.
// Block-on-block collisions are not modeled.
type Kinematic struct {
	Gravity      float64
	ReleaseAngle float64

	scn    scene.Scene
	dt     float64
	time   float64
	bodies []body
	index  map[string]int

	group    []int
	axis     int // 0 tips along x, 1 along y
	sign     float64
	pivot    [3]float64
	lever    [][2]float64 // (h, v) of each group member relative to the pivot at rest
	inertia  float64
	tipAngle float64
	tipOmega float64
}

func NewKinematic(s scene.Scene) (*Kinematic, error) {
	if len(s.Bodies) == 0 {
		return nil, fmt.Errorf("kinematic: scene has no bodies")
	}
	k := &Kinematic{
		Gravity:      9.81,
		ReleaseAngle: math.Pi / 4,
		scn:          s,
		dt:           DefaultTimestep,
		index:        make(map[string]int, len(s.Bodies)),
	}
	for i, b := range s.Bodies {
		if _, dup := k.index[b.Name]; dup {
			return nil, fmt.Errorf("kinematic: duplicate body %q", b.Name)
		}
		k.index[b.Name] = i
	}
	if err := k.Reset(); err != nil {
		return nil, err
	}
	return k, nil
}

// Factory adapts NewKinematic to engine.Factory.
func Factory(s scene.Scene) (engine.Engine, error) {
	return NewKinematic(s)
}

// Register adds the kinematic backend to r.
func Register(r *engine.Registry) {
	r.Register(Backend, Factory)
}

func (k *Kinematic) SetTimestep(dt float64) { k.dt = dt }

func (k *Kinematic) Time() float64 { return k.time }

func (k *Kinematic) Bodies() []string {
	names := make([]string, len(k.bodies))
	for i, b := range k.bodies {
		names[i] = b.name
	}
	return names
}

func (k *Kinematic) Reset() error {
	k.time = 0
	k.bodies = make([]body, len(k.scn.Bodies))
	for i, sb := range k.scn.Bodies {
		b := sb.Block
		k.bodies[i] = body{
			name:  sb.Name,
			size:  [3]float64{b.LX, b.LY, b.LZ},
			start: [3]float64{b.X, b.Y, b.Z},
			pos:   [3]float64{b.X, b.Y, b.Z},
			mat:   engine.Identity,
		}
	}
	k.group = nil
	k.tipAngle, k.tipOmega = 0, 0
	if !k.scn.Static {
		k.setupTip()
	}
	return nil
}

// setupTip finds the lowest unstable block and prepares the group above it
// to rotate about the edge of its support toward the overhang.
func (k *Kinematic) setupTip() {
	first := -1
	for i, sb := range k.scn.Bodies {
		if i > 0 && sb.Block.Unstable {
			first = i
			break
		}
	}
	if first < 0 {
		return
	}

	n := float64(len(k.bodies) - first)
	var cx, cy float64
	for _, b := range k.bodies[first:] {
		cx += b.start[0] / n
		cy += b.start[1] / n
	}
	below := k.bodies[first-1]
	dx, dy := cx-below.start[0], cy-below.start[1]
	overX := math.Abs(dx) - below.size[0]/2
	overY := math.Abs(dy) - below.size[1]/2

	k.axis, k.sign = 0, sign(dx)
	if overY > overX {
		k.axis, k.sign = 1, sign(dy)
	}

	k.pivot = below.start
	k.pivot[k.axis] += k.sign * below.size[k.axis] / 2
	k.pivot[2] += below.size[2] / 2

	k.lever = make([][2]float64, 0, len(k.bodies)-first)
	k.inertia = 0
	for i := first; i < len(k.bodies); i++ {
		b := &k.bodies[i]
		h := k.sign * (b.start[k.axis] - k.pivot[k.axis])
		v := b.start[2] - k.pivot[2]
		k.lever = append(k.lever, [2]float64{h, v})
		k.inertia += h*h + v*v + (b.size[k.axis]*b.size[k.axis]+b.size[2]*b.size[2])/12
		b.phase = tipping
		k.group = append(k.group, i)
	}
}

func (k *Kinematic) Step() error {
	if !(k.dt > 0) {
		return fmt.Errorf("kinematic: timestep must be positive, got %v", k.dt)
	}
	if len(k.group) > 0 {
		k.stepTip()
	}
	for i := range k.bodies {
		if k.bodies[i].phase == flying {
			k.stepFlight(i)
		}
	}
	k.time += k.dt
	return nil
}

// stepTip advances the rigid group with a semi-implicit Euler step of the
// gravity torque about the pivot.
func (k *Kinematic) stepTip() {
	c, s := math.Cos(k.tipAngle), math.Sin(k.tipAngle)
	torque := 0.0
	for _, l := range k.lever {
		torque += k.Gravity * (l[0]*c + l[1]*s)
	}
	k.tipOmega += torque / k.inertia * k.dt
	k.tipAngle += k.tipOmega * k.dt

	c, s = math.Cos(k.tipAngle), math.Sin(k.tipAngle)
	release := k.tipAngle >= k.ReleaseAngle
	for j, i := range k.group {
		b := &k.bodies[i]
		h := k.lever[j][0]*c + k.lever[j][1]*s
		v := -k.lever[j][0]*s + k.lever[j][1]*c
		b.pos[k.axis] = k.pivot[k.axis] + k.sign*h
		b.pos[2] = k.pivot[2] + v
		b.angle = k.sign * k.tipAngle
		b.mat = tipMatrix(k.axis, b.angle)
		if b.pos[2]-k.halfExtent(b) < 0 {
			release = true
		}
	}
	if !release {
		return
	}

	for j, i := range k.group {
		b := &k.bodies[i]
		h := k.lever[j][0]*c + k.lever[j][1]*s
		v := -k.lever[j][0]*s + k.lever[j][1]*c
		b.vel[k.axis] = k.sign * k.tipOmega * v
		b.vel[2] = -k.tipOmega * h
		b.omega = k.sign * k.tipOmega
		b.phase = flying
	}
	k.group = nil
}

func (k *Kinematic) stepFlight(i int) {
	b := &k.bodies[i]
	b.vel[2] -= k.Gravity * k.dt
	for a := 0; a < 3; a++ {
		b.pos[a] += b.vel[a] * k.dt
	}
	b.angle += b.omega * k.dt
	b.mat = tipMatrix(k.axis, b.angle)

	floor := k.support(i)
	if b.pos[2]-k.halfExtent(b) > floor {
		return
	}
	b.angle = math.Round(b.angle/(math.Pi/2)) * (math.Pi / 2)
	b.mat = tipMatrix(k.axis, b.angle)
	b.pos[2] = floor + k.halfExtent(b)
	b.vel = [3]float64{}
	b.omega = 0
	b.phase = settled
}

// support is the top of the highest resting block whose footprint contains
// the center of body i, or the ground.
func (k *Kinematic) support(i int) float64 {
	b := &k.bodies[i]
	top := 0.0
	for j := range k.bodies {
		r := &k.bodies[j]
		if r.phase != resting {
			continue
		}
		if math.Abs(b.pos[k.axis]-r.pos[k.axis]) <= r.size[k.axis]/2 {
			top = math.Max(top, r.pos[2]+r.size[2]/2)
		}
	}
	return top
}

// halfExtent is half the vertical extent of b at its current angle.
func (k *Kinematic) halfExtent(b *body) float64 {
	return math.Abs(b.size[k.axis]/2*math.Sin(b.angle)) + math.Abs(b.size[2]/2*math.Cos(b.angle))
}

func (k *Kinematic) Pose(name string) (engine.Pose, error) {
	i, ok := k.index[name]
	if !ok {
		return engine.Pose{}, fmt.Errorf("%w: %s", engine.ErrUnknownBody, name)
	}
	b := k.bodies[i]
	return engine.Pose{Name: b.name, XYZ: b.pos, XMat: b.mat}, nil
}

// SetPose overwrites a body's pose. Members of a group that is still tipping
// are re-posed from the group rotation on the next step.
func (k *Kinematic) SetPose(p engine.Pose) error {
	i, ok := k.index[p.Name]
	if !ok {
		return fmt.Errorf("%w: %s", engine.ErrUnknownBody, p.Name)
	}
	b := &k.bodies[i]
	b.pos = p.XYZ
	b.mat = p.XMat
	if k.axis == 0 {
		b.angle = math.Atan2(p.XMat[2], p.XMat[0])
	} else {
		b.angle = math.Atan2(p.XMat[5], p.XMat[4])
	}
	return nil
}

// Render draws a wireframe view through the scene camera.
func (k *Kinematic) Render(opts engine.RenderOptions) (image.Image, error) {
	cam := k.scn.Camera
	if opts.Camera != "" && opts.Camera != cam.Name {
		return nil, fmt.Errorf("kinematic: unknown camera %q", opts.Camera)
	}
	cols, rows := opts.Width/viz.CellWidth, opts.Height/viz.CellHeight
	if cols < 1 || rows < 1 {
		return nil, fmt.Errorf("kinematic: render size %dx%d too small", opts.Width, opts.Height)
	}

	sizes := make([][3]float64, len(k.bodies))
	poses := make([]engine.Pose, len(k.bodies))
	for i, b := range k.bodies {
		sizes[i] = b.size
		poses[i] = engine.Pose{Name: b.name, XYZ: b.pos, XMat: b.mat}
	}
	canvas := viz.SceneView(sizes, poses, cam, cols, rows)
	return canvas.Rasterize(), nil
}

func (k *Kinematic) GetParams() map[string]float64 {
	return map[string]float64{
		"gravity":       k.Gravity,
		"release_angle": k.ReleaseAngle,
	}
}

func (k *Kinematic) SetParam(name string, value float64) error {
	switch name {
	case "gravity":
		k.Gravity = value
	case "release_angle":
		k.ReleaseAngle = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}

// tipMatrix is the row-major rotation that tilts a body's top toward +x
// (axis 0) or +y (axis 1) by angle a.
func tipMatrix(axis int, a float64) [9]float64 {
	c, s := math.Cos(a), math.Sin(a)
	if axis == 0 {
		return [9]float64{c, 0, s, 0, 1, 0, -s, 0, c}
	}
	return [9]float64{1, 0, 0, 0, c, s, 0, -s, c}
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
