// Package metrics summarizes recorded trajectories. Every Metric observes
// the frames of one simulation in order and reports a single value.
package metrics

import (
	"math"

	"github.com/harvard-visionlab/block-towers/internal/trajectory"
)

// MoveThreshold is the displacement below which a block counts as unmoved.
const MoveThreshold = 0.01

type Metric interface {
	Name() string
	Observe(f trajectory.Frame)
	Value() float64
	Reset()
}

// Default returns the metrics recorded with every simulation run.
func Default() []Metric {
	return []Metric{
		NewMaxDisplacement(),
		NewTopDrop(),
		NewFallenBlocks(MoveThreshold),
		NewSettleTime(MoveThreshold / 10),
	}
}

// Evaluate feeds every frame of sim to the metrics and returns their values
// by name. The metrics are reset first.
func Evaluate(sim *trajectory.Simulation, ms ...Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		m.Reset()
		for _, f := range sim.Trajectory {
			m.Observe(f)
		}
		out[m.Name()] = m.Value()
	}
	return out
}

func distance(a, b [3]float64) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func positions(f trajectory.Frame) [][3]float64 {
	out := make([][3]float64, len(f.Data))
	for i, p := range f.Data {
		out[i] = p.XYZ
	}
	return out
}

// MaxDisplacement is the largest distance any block gets from its first
// recorded position.
type MaxDisplacement struct {
	start [][3]float64
	max   float64
}

func NewMaxDisplacement() *MaxDisplacement { return &MaxDisplacement{} }

func (m *MaxDisplacement) Name() string { return "max_displacement" }

func (m *MaxDisplacement) Observe(f trajectory.Frame) {
	if m.start == nil {
		m.start = positions(f)
		return
	}
	for i, p := range f.Data {
		if i < len(m.start) {
			m.max = math.Max(m.max, distance(p.XYZ, m.start[i]))
		}
	}
}

func (m *MaxDisplacement) Value() float64 { return m.max }

func (m *MaxDisplacement) Reset() {
	m.start = nil
	m.max = 0
}

// TopDrop is how far the highest starting block has dropped by the last
// frame.
type TopDrop struct {
	top          int
	startZ, endZ float64
	seen         bool
}

func NewTopDrop() *TopDrop { return &TopDrop{} }

func (m *TopDrop) Name() string { return "top_drop" }

func (m *TopDrop) Observe(f trajectory.Frame) {
	if len(f.Data) == 0 {
		return
	}
	if !m.seen {
		m.seen = true
		for i, p := range f.Data {
			if p.XYZ[2] > f.Data[m.top].XYZ[2] {
				m.top = i
			}
		}
		m.startZ = f.Data[m.top].XYZ[2]
	}
	if m.top < len(f.Data) {
		m.endZ = f.Data[m.top].XYZ[2]
	}
}

func (m *TopDrop) Value() float64 { return m.startZ - m.endZ }

func (m *TopDrop) Reset() { *m = TopDrop{} }

// FallenBlocks counts blocks whose last position is more than threshold
// from their first.
type FallenBlocks struct {
	threshold  float64
	start, end [][3]float64
}

func NewFallenBlocks(threshold float64) *FallenBlocks {
	return &FallenBlocks{threshold: threshold}
}

func (m *FallenBlocks) Name() string { return "fallen_blocks" }

func (m *FallenBlocks) Observe(f trajectory.Frame) {
	if m.start == nil {
		m.start = positions(f)
	}
	m.end = positions(f)
}

func (m *FallenBlocks) Value() float64 {
	n := 0
	for i := range m.end {
		if i < len(m.start) && distance(m.end[i], m.start[i]) > m.threshold {
			n++
		}
	}
	return float64(n)
}

func (m *FallenBlocks) Reset() {
	m.start, m.end = nil, nil
}

// SettleTime is the video time of the last frame in which any block moved
// more than threshold since the previous frame. Zero means nothing moved.
type SettleTime struct {
	threshold float64
	prev      [][3]float64
	last      float64
}

func NewSettleTime(threshold float64) *SettleTime {
	return &SettleTime{threshold: threshold}
}

func (m *SettleTime) Name() string { return "settle_time" }

func (m *SettleTime) Observe(f trajectory.Frame) {
	cur := positions(f)
	for i := range cur {
		if i < len(m.prev) && distance(cur[i], m.prev[i]) > m.threshold {
			m.last = f.VideoT
			break
		}
	}
	m.prev = cur
}

func (m *SettleTime) Value() float64 { return m.last }

func (m *SettleTime) Reset() {
	m.prev = nil
	m.last = 0
}
