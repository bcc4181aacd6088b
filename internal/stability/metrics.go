package stability

import (
	"errors"
	"fmt"
	"math"

	"github.com/harvard-visionlab/block-towers/internal/tower"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrTooShort is returned by Compute for towers with fewer than two blocks;
// every per-support series would be empty.
var ErrTooShort = errors.New("stability: metrics need at least two blocks")

const (
	ClassStable   = "stable"
	ClassUnstable = "unstable"
)

// Metrics are continuous measures of how close a tower is to collapse.
//
// DistanceFromTowerCenter has one entry per block. The remaining series have
// one entry per supported block (indices 1..N-1). CentroidEdgeDistance is
// signed: negative values are a stability margin, positive values an
// overhang, so its summaries are never taken in absolute value.
type Metrics struct {
	DistanceFromTowerCenter []float64 `json:"distance_from_tower_center"`
	DistanceFromBottomBlock []float64 `json:"distance_from_bottom_block"`
	PercentSupported        []float64 `json:"percent_supported"`
	CentroidEdgeDistance    []float64 `json:"centroid_edge_distance"`
	IsUnstable              []bool    `json:"is_unstable"`

	Unstable    bool    `json:"unstable"`
	NumUnstable int     `json:"num_unstable"`
	PctUnstable float64 `json:"pct_unstable"`

	MaxDistanceFromTowerCenter  float64 `json:"max_distance_from_tower_center"`
	MeanDistanceFromTowerCenter float64 `json:"mean_distance_from_tower_center"`
	MaxDistanceFromBottomBlock  float64 `json:"max_distance_from_bottom_block"`
	MeanDistanceFromBottomBlock float64 `json:"mean_distance_from_bottom_block"`

	// lower means less support, so the minimum is the interesting summary
	MinPercentSupported  float64 `json:"min_percent_supported"`
	MeanPercentSupported float64 `json:"mean_percent_supported"`
	MaxPercentSupported  float64 `json:"max_percent_supported"`

	MaxCentroidEdgeDistance  float64 `json:"max_centroid_edge_distance"`
	MeanCentroidEdgeDistance float64 `json:"mean_centroid_edge_distance"`

	Class string `json:"gt_class"`

	// CorrectRequiresMax marks towers whose mean margin looks stable while
	// at least one block overhangs.
	CorrectRequiresMax bool `json:"correct_requires_max"`
}

// Compute derives Metrics from a tower without modifying it.
func Compute(t tower.Tower) (*Metrics, error) {
	anyFall, perBlock, err := PredictFall(t)
	if err != nil {
		return nil, err
	}
	n := len(t)
	if n < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooShort, n)
	}

	xs := make([]float64, n)
	for i, b := range t {
		xs[i] = b.X
	}
	center := stat.Mean(xs, nil)

	m := &Metrics{
		DistanceFromTowerCenter: make([]float64, n),
		DistanceFromBottomBlock: make([]float64, n-1),
		PercentSupported:        make([]float64, n-1),
		CentroidEdgeDistance:    make([]float64, n-1),
		IsUnstable:              perBlock,
		Unstable:                anyFall,
	}
	for i := range t {
		m.DistanceFromTowerCenter[i] = t[i].X - center
	}

	cx, cy := loadCentroids(t)
	for i := 1; i < n; i++ {
		top, below := t[i], t[i-1]
		minX, maxX, minY, maxY := below.Footprint()

		m.DistanceFromBottomBlock[i-1] = top.X - t[0].X
		m.PercentSupported[i-1] = PercentSupported(top.X, below.X, top.LX, below.LX) *
			PercentSupported(top.Y, below.Y, top.LY, below.LY)
		m.CentroidEdgeDistance[i-1] = math.Max(
			CentroidEdgeDistance(cx[i], minX, maxX),
			CentroidEdgeDistance(cy[i], minY, maxY),
		)

		if perBlock[i] {
			m.NumUnstable++
		}
	}
	m.PctUnstable = float64(m.NumUnstable) / float64(n-1)

	absTower := absAll(m.DistanceFromTowerCenter)
	absBottom := absAll(m.DistanceFromBottomBlock)
	m.MaxDistanceFromTowerCenter = floats.Max(absTower)
	m.MeanDistanceFromTowerCenter = stat.Mean(absTower, nil)
	m.MaxDistanceFromBottomBlock = floats.Max(absBottom)
	m.MeanDistanceFromBottomBlock = stat.Mean(absBottom, nil)

	m.MinPercentSupported = floats.Min(m.PercentSupported)
	m.MeanPercentSupported = stat.Mean(m.PercentSupported, nil)
	m.MaxPercentSupported = floats.Max(m.PercentSupported)

	m.MaxCentroidEdgeDistance = floats.Max(m.CentroidEdgeDistance)
	m.MeanCentroidEdgeDistance = stat.Mean(m.CentroidEdgeDistance, nil)

	m.Class = ClassStable
	if m.Unstable {
		m.Class = ClassUnstable
	}
	m.CorrectRequiresMax = m.MaxCentroidEdgeDistance > 0 && m.MeanCentroidEdgeDistance <= 0

	return m, nil
}

// PercentSupported returns the fraction of the top block's extent (along one
// axis) that rests on the bottom block. It is 1 when the top block is fully
// supported, 0 when the intervals are disjoint, and handles blocks of
// different sizes.
func PercentSupported(topX, bottomX, topLen, bottomLen float64) float64 {
	topLeft := topX - topLen/2
	topRight := topX + topLen/2
	bottomLeft := bottomX - bottomLen/2
	bottomRight := bottomX + bottomLen/2

	leftOver := math.Min(0, topLeft-bottomLeft)
	rightOver := math.Max(0, topRight-bottomRight)

	overlap := topLen - math.Abs(leftOver) - math.Abs(rightOver)
	return math.Max(0, overlap) / topLen
}

// CentroidEdgeDistance is the signed distance from a load centroid to the
// edge of the support interval [lo, hi]. Inside the interval it is minus the
// distance to the nearer edge; outside it is the distance past the exceeded
// edge.
func CentroidEdgeDistance(center, lo, hi float64) float64 {
	switch {
	case center < lo:
		return lo - center
	case center > hi:
		return center - hi
	default:
		return -math.Min(center-lo, hi-center)
	}
}

func absAll(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = math.Abs(x)
	}
	return out
}
