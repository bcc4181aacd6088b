package staircase

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvard-visionlab/block-towers/internal/generator"
	"github.com/harvard-visionlab/block-towers/internal/tower"
)

// linear reports p = std, so a target of 0.5 is reached at std = 0.5.
func linear(_ context.Context, std float64, _ int) (float64, error) {
	return std, nil
}

func countTrue(flags []bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

func TestCalibrateReachesReversals(t *testing.T) {
	cfg := DefaultConfig()
	sizes := make([]int, 0)
	measure := func(ctx context.Context, std float64, n int) (float64, error) {
		sizes = append(sizes, n)
		return linear(ctx, std, n)
	}

	res, err := Calibrate(context.Background(), measure, cfg)
	require.NoError(t, err)

	assert.Equal(t, 20, countTrue(res.ReversalFlags))
	assert.Len(t, res.StdHistory, res.Iterations)
	assert.Len(t, res.ProbHistory, res.Iterations)
	assert.Len(t, res.ReversalFlags, res.Iterations)
	assert.False(t, res.ReversalFlags[0], "first movement is never a reversal")
	assert.True(t, res.ReversalFlags[len(res.ReversalFlags)-1], "search ends on a reversal")

	at := make([]float64, 0)
	for i, rev := range res.ReversalFlags {
		if rev {
			at = append(at, res.StdHistory[i])
		}
	}
	sum := 0.0
	for _, v := range at[len(at)-9:] {
		sum += v
	}
	assert.InDelta(t, sum/9, res.Estimate, 1e-12)
	assert.InDelta(t, 0.5, res.Estimate, 0.02)

	assert.Equal(t, 1000, sizes[0])
	assert.Equal(t, 2000, sizes[len(sizes)-1])
	for _, n := range sizes {
		assert.Contains(t, []int{1000, 2000}, n)
	}
}

func TestRefinementHalvesStep(t *testing.T) {
	cfg := DefaultConfig()
	res, err := Calibrate(context.Background(), linear, cfg)
	require.NoError(t, err)

	last := len(res.StdHistory) - 1
	step := math.Abs(res.StdHistory[last] - res.StdHistory[last-1])
	assert.InDelta(t, cfg.InitialStep/2, step, 1e-9)
}

func TestAdvance(t *testing.T) {
	cfg := Config{Target: 0.5, StartStd: 0.1, TotalReversals: 4, InitialStep: 0.05, NumSamples: 10, MaxIterations: 100}
	st := NewState(cfg)

	assert.False(t, st.Advance(cfg.Target, 0.2)) // up
	assert.InDelta(t, 0.15, st.Std, 1e-12)
	assert.Equal(t, 1, st.Direction)

	assert.False(t, st.Advance(cfg.Target, 0.3)) // up again
	assert.True(t, st.Advance(cfg.Target, 0.5))  // p == target moves down
	assert.Equal(t, -1, st.Direction)
	assert.Equal(t, 1, st.Reversals)
	assert.InDelta(t, 0.15, st.Std, 1e-12)

	assert.Equal(t, []bool{false, false, true}, st.ReversalFlags)
	assert.Equal(t, []float64{0.2, 0.3, 0.5}, st.ProbHistory)
}

func TestAdvanceFloorsAtZero(t *testing.T) {
	st := NewState(Config{StartStd: 0.005, InitialStep: 0.01})
	st.Advance(0.5, 1)
	assert.Equal(t, 0.005, st.Std)
	assert.Equal(t, -1, st.Direction)
}

func TestRefineOnce(t *testing.T) {
	cfg := Config{TotalReversals: 20, InitialStep: 0.01, NumSamples: 100}
	st := NewState(cfg)

	st.Reversals = 10
	assert.False(t, st.Refine(cfg), "needs strictly more than half")

	st.Reversals = 11
	assert.True(t, st.Refine(cfg))
	assert.Equal(t, 200, st.Samples)
	assert.Equal(t, 0.005, st.Step)

	st.Reversals = 15
	assert.False(t, st.Refine(cfg))
	assert.Equal(t, 200, st.Samples)
}

func TestCalibrateUnreachable(t *testing.T) {
	// Always above target from a std that can never step down: no reversal.
	always := func(context.Context, float64, int) (float64, error) { return 1, nil }
	cfg := DefaultConfig()
	cfg.StartStd = 0.005
	cfg.MaxIterations = 50

	res, err := Calibrate(context.Background(), always, cfg)
	require.ErrorIs(t, err, tower.ErrUnreachable)
	require.NotNil(t, res)
	assert.Equal(t, 50, res.Iterations)
	for _, s := range res.StdHistory {
		assert.Equal(t, 0.005, s)
	}
	assert.Equal(t, 0.0, res.Estimate)
}

func TestCalibrateMeasureError(t *testing.T) {
	boom := errors.New("boom")
	failing := func(context.Context, float64, int) (float64, error) { return 0, boom }
	_, err := Calibrate(context.Background(), failing, DefaultConfig())
	assert.ErrorIs(t, err, boom)
}

func TestCalibrateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Calibrate(ctx, linear, DefaultConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalibrateObserver(t *testing.T) {
	var its []Iteration
	res, err := Calibrate(context.Background(), linear, DefaultConfig(), ObserverFunc(func(it Iteration) {
		its = append(its, it)
	}))
	require.NoError(t, err)
	require.Len(t, its, res.Iterations)
	assert.Equal(t, 1, its[0].Index)
	assert.Equal(t, 20, its[len(its)-1].Reversals)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"target", func(c *Config) { c.Target = 1.5 }},
		{"start std", func(c *Config) { c.StartStd = -0.1 }},
		{"reversals", func(c *Config) { c.TotalReversals = 0 }},
		{"step", func(c *Config) { c.InitialStep = 0 }},
		{"samples", func(c *Config) { c.NumSamples = 0 }},
		{"iterations", func(c *Config) { c.MaxIterations = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tower.ErrInvalidParam)
		})
	}
	assert.NoError(t, DefaultConfig().Validate())
}

func TestEstimate(t *testing.T) {
	stds := []float64{1, 2, 3, 4}
	assert.Equal(t, 0.0, Estimate(stds, []bool{false, false, false, false}, 9))
	assert.Equal(t, 3.0, Estimate(stds, []bool{false, true, false, true}, 9))
	assert.Equal(t, 4.0, Estimate(stds, []bool{false, true, false, true}, 1))
}

func TestMonteCarlo(t *testing.T) {
	base := generator.Params{NumBlocks: 4, SideLength: 0.4, Truncate: 0.65}
	measure := MonteCarlo(generator.NewSeeded(3, 0).Func(), base)

	p, err := measure(context.Background(), 0, 100)
	require.NoError(t, err)
	assert.Equal(t, 0.0, p)

	p, err = measure(context.Background(), 0.3, 400)
	require.NoError(t, err)
	assert.Greater(t, p, 0.1)
	assert.Less(t, p, 0.95)
}
