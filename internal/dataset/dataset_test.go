package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvard-visionlab/block-towers/internal/collector"
	"github.com/harvard-visionlab/block-towers/internal/config"
	"github.com/harvard-visionlab/block-towers/internal/stability"
	"github.com/harvard-visionlab/block-towers/internal/tower"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "stack3_stable", Key(3, false))
	assert.Equal(t, "stack6_unstable", Key(6, true))
}

func TestBuild(t *testing.T) {
	heights := make([]int, 0)
	ds, err := Build(context.Background(), "natural", config.GetPreset("natural"), Options{
		Heights:    []int{3, 4},
		NumSamples: 20,
		PctFall:    0.5,
		TestSize:   0.2,
		Seed:       5,
		OnHeight:   func(h int, _ *collector.Batch) { heights = append(heights, h) },
	})
	require.NoError(t, err)

	assert.Equal(t, []int{3, 4}, heights)
	assert.Equal(t, []string{"stack3_stable", "stack3_unstable", "stack4_stable", "stack4_unstable"}, ds.Keys())
	assert.Equal(t, 40, ds.Size())

	for _, key := range ds.Keys() {
		s := ds.Splits[key]
		assert.Len(t, s.Train, 8, key)
		assert.Len(t, s.Test, 2, key)

		for _, ex := range append(append([]Example{}, s.Train...), s.Test...) {
			falls, _, err := stability.PredictFall(ex.Tower)
			require.NoError(t, err)
			assert.Equal(t, falls, ex.Label == LabelUnstable, key)
			assert.Len(t, ex.Tower, ex.NumBlocks)
		}
	}
}

func TestBuildDeterministic(t *testing.T) {
	opts := Options{Heights: []int{3}, NumSamples: 10, PctFall: 0.5, TestSize: 0.2, Seed: 11}
	a, err := Build(context.Background(), "fixed", config.GetPreset("fixed"), opts)
	require.NoError(t, err)
	b, err := Build(context.Background(), "fixed", config.GetPreset("fixed"), opts)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuildErrors(t *testing.T) {
	ctx := context.Background()
	_, err := Build(ctx, "natural", config.GetPreset("natural"), Options{Heights: []int{9}, NumSamples: 4, TestSize: 0.2})
	assert.Error(t, err)

	_, err = Build(ctx, "natural", config.GetPreset("natural"), Options{Heights: []int{3}, NumSamples: 4, TestSize: 1})
	assert.ErrorIs(t, err, tower.ErrInvalidParam)
}

func TestSplitExamples(t *testing.T) {
	examples := make([]Example, 7)
	for i := range examples {
		examples[i] = Example{NumBlocks: i}
	}
	s := SplitExamples(examples, 0.2, rand.New(rand.NewPCG(1, 2)))
	assert.Len(t, s.Test, 2)
	assert.Len(t, s.Train, 5)

	seen := make(map[int]bool)
	for _, ex := range append(append([]Example{}, s.Train...), s.Test...) {
		seen[ex.NumBlocks] = true
	}
	assert.Len(t, seen, 7)
	assert.Equal(t, 0, examples[0].NumBlocks, "input left untouched")
}

func TestWriteJSON(t *testing.T) {
	ds := &Dataset{Preset: "natural", Splits: map[string]*Split{
		Key(3, true): {Train: []Example{{Tower: tower.Tower{tower.NewBlock(0, 0, 0.2, 0.4, 0.4, 0.4)}, Label: 1, NumBlocks: 3}}},
	}}
	var buf bytes.Buffer
	require.NoError(t, ds.WriteJSON(&buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	splits := decoded["splits"].(map[string]any)
	assert.Contains(t, splits, "stack3_unstable")
}
