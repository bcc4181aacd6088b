package stability

import "github.com/harvard-visionlab/block-towers/internal/tower"

// PredictFall reports, for every block, whether the load it carries (itself
// plus everything above) has its centroid strictly outside the footprint of
// the block below. Block 0 rests on the ground and is always stable. A
// centroid exactly on an edge counts as supported.
func PredictFall(t tower.Tower) (bool, []bool, error) {
	if err := t.Validate(); err != nil {
		return false, nil, err
	}

	cx, cy := loadCentroids(t)
	perBlock := make([]bool, len(t))
	anyFall := false

	for i := 1; i < len(t); i++ {
		minX, maxX, minY, maxY := t[i-1].Footprint()
		fall := cx[i] < minX || cx[i] > maxX || cy[i] < minY || cy[i] > maxY
		perBlock[i] = fall
		anyFall = anyFall || fall
	}

	return anyFall, perBlock, nil
}

// Label runs PredictFall and stores the per-block result in each block's
// Unstable field.
func Label(t tower.Tower) error {
	_, perBlock, err := PredictFall(t)
	if err != nil {
		return err
	}
	for i := range t {
		t[i].Unstable = perBlock[i]
	}
	return nil
}

// loadCentroids returns, for each index i, the mean x and y of blocks i..N-1.
func loadCentroids(t tower.Tower) ([]float64, []float64) {
	n := len(t)
	cx := make([]float64, n)
	cy := make([]float64, n)

	sumX, sumY := 0.0, 0.0
	for i := n - 1; i >= 0; i-- {
		sumX += t[i].X
		sumY += t[i].Y
		count := float64(n - i)
		cx[i] = sumX / count
		cy[i] = sumY / count
	}
	return cx, cy
}
