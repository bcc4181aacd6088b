package stability

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentSupported(t *testing.T) {
	tests := []struct {
		name                     string
		topX, bottomX, top, bott float64
		want                     float64
	}{
		{"fully supported", 0, 0, 0.4, 0.4, 1.0},
		{"disjoint", 0.5, 0, 0.4, 0.4, 0.0},
		{"half right", 0.2, 0, 0.4, 0.4, 0.5},
		{"half left", -0.2, 0, 0.4, 0.4, 0.5},
		{"touching edges", 0.4, 0, 0.4, 0.4, 0.0},
		{"small on large", 0.3, 0, 0.2, 1.0, 1.0},
		{"large on small", 0, 0, 1.0, 0.2, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PercentSupported(tt.topX, tt.bottomX, tt.top, tt.bott)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestPercentSupportedMonotone(t *testing.T) {
	prev := PercentSupported(0, 0, 0.4, 0.4)
	for off := 0.001; off <= 0.6; off += 0.001 {
		for _, sign := range []float64{1, -1} {
			got := PercentSupported(sign*off, 0, 0.4, 0.4)
			require.LessOrEqual(t, got, prev+1e-12, "offset %v", sign*off)
		}
		prev = PercentSupported(off, 0, 0.4, 0.4)
	}
}

func TestCentroidEdgeDistance(t *testing.T) {
	tests := []struct {
		name   string
		center float64
		want   float64
	}{
		{"centered", 0, -0.2},
		{"near right edge", 0.15, -0.05},
		{"near left edge", -0.19, -0.01},
		{"past right edge", 0.3, 0.1},
		{"past left edge", -0.5, 0.3},
		{"on edge", 0.2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CentroidEdgeDistance(tt.center, -0.2, 0.2), 1e-12)
		})
	}
}

func TestComputeTwoBlocks(t *testing.T) {
	m, err := Compute(stack(0.4, 0, 0.3))
	require.NoError(t, err)

	assert.True(t, m.Unstable)
	assert.Equal(t, ClassUnstable, m.Class)
	assert.Equal(t, 1, m.NumUnstable)
	assert.InDelta(t, 1.0, m.PctUnstable, 1e-12)

	require.Len(t, m.DistanceFromTowerCenter, 2)
	require.Len(t, m.DistanceFromBottomBlock, 1)
	assert.InDelta(t, -0.15, m.DistanceFromTowerCenter[0], 1e-12)
	assert.InDelta(t, 0.15, m.DistanceFromTowerCenter[1], 1e-12)
	assert.InDelta(t, 0.15, m.MaxDistanceFromTowerCenter, 1e-12)
	assert.InDelta(t, 0.3, m.MaxDistanceFromBottomBlock, 1e-12)

	assert.InDelta(t, 0.25, m.PercentSupported[0], 1e-12)
	assert.InDelta(t, 0.1, m.CentroidEdgeDistance[0], 1e-12)
	assert.InDelta(t, 0.1, m.MaxCentroidEdgeDistance, 1e-12)
	assert.False(t, m.CorrectRequiresMax)
}

func TestComputeSignAgreesWithPrediction(t *testing.T) {
	towers := [][]float64{
		{0, 0.1, 0.2, 0.3},
		{0, -0.15, 0.05, 0.3},
		{0, 0.19, 0.38},
		{0, 0, 0},
	}
	for _, xs := range towers {
		tw := stack(0.4, xs...)
		m, err := Compute(tw)
		require.NoError(t, err)

		for i, d := range m.CentroidEdgeDistance {
			assert.Equal(t, d > 0, m.IsUnstable[i+1], "tower %v block %d distance %v", xs, i+1, d)
		}
		assert.Equal(t, m.MaxCentroidEdgeDistance > 0, m.Unstable, "tower %v", xs)
	}
}

func TestComputeCorrectRequiresMax(t *testing.T) {
	// only the top block overhangs; the lower margins pull the mean negative
	m, err := Compute(stack(0.4, 0, 0, 0, 0, 0.21))
	require.NoError(t, err)

	assert.True(t, m.Unstable)
	assert.Greater(t, m.MaxCentroidEdgeDistance, 0.0)
	assert.LessOrEqual(t, m.MeanCentroidEdgeDistance, 0.0)
	assert.True(t, m.CorrectRequiresMax)
}

func TestComputeRequiresTwoBlocks(t *testing.T) {
	_, err := Compute(stack(0.4, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooShort))
}

func TestComputeDoesNotMutate(t *testing.T) {
	tw := stack(0.4, 0, 0.3)
	_, err := Compute(tw)
	require.NoError(t, err)
	assert.False(t, tw[1].Unstable)
	assert.False(t, math.IsNaN(tw[1].X))
}
