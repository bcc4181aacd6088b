// Package dataset assembles class-balanced tower datasets across several
// tower heights and splits each class into train and test sets.
package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/harvard-visionlab/block-towers/internal/collector"
	"github.com/harvard-visionlab/block-towers/internal/config"
	"github.com/harvard-visionlab/block-towers/internal/generator"
	"github.com/harvard-visionlab/block-towers/internal/tower"
)

// Class labels.
const (
	LabelStable   = 0
	LabelUnstable = 1
)

// Example is one labeled tower.
type Example struct {
	Tower     tower.Tower `json:"data"`
	Label     int         `json:"label"`
	NumBlocks int         `json:"num_blocks"`
}

// Split holds the train and test examples of one height and class.
type Split struct {
	Train []Example `json:"train"`
	Test  []Example `json:"test"`
}

// Dataset maps keys such as "stack4_unstable" to their splits.
type Dataset struct {
	Preset string            `json:"preset"`
	Splits map[string]*Split `json:"splits"`
}

// Key names the split of one height and class.
func Key(height int, unstable bool) string {
	if unstable {
		return fmt.Sprintf("stack%d_unstable", height)
	}
	return fmt.Sprintf("stack%d_stable", height)
}

// Keys returns the split keys in sorted order.
func (d *Dataset) Keys() []string {
	keys := make([]string, 0, len(d.Splits))
	for k := range d.Splits {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Size is the total number of examples.
func (d *Dataset) Size() int {
	n := 0
	for _, s := range d.Splits {
		n += len(s.Train) + len(s.Test)
	}
	return n
}

func (d *Dataset) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// Options control a dataset build.
type Options struct {
	Heights    []int
	NumSamples int
	PctFall    float64
	TestSize   float64
	Seed       uint64
	// MaxAttempts caps candidates per height; 0 selects the collector default.
	MaxAttempts     int
	SamplerAttempts int
	// Observe, if set, receives collector progress for every height.
	Observe func(height int, p collector.Progress)
	// OnHeight, if set, is called after each height is collected.
	OnHeight func(height int, batch *collector.Batch)
}

// Build collects a balanced batch for every requested height of preset and
// splits each class with a seeded shuffle.
func Build(ctx context.Context, name string, preset *config.Preset, opts Options) (*Dataset, error) {
	if preset == nil {
		return nil, fmt.Errorf("unknown preset %q", name)
	}
	if opts.TestSize < 0 || opts.TestSize >= 1 {
		return nil, fmt.Errorf("%w: test_size must be in [0, 1), got %v", tower.ErrInvalidParam, opts.TestSize)
	}
	heights := opts.Heights
	if len(heights) == 0 {
		heights = preset.SortedHeights()
	}

	gen := generator.NewSeeded(opts.Seed, opts.SamplerAttempts)
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed+1))
	ds := &Dataset{Preset: name, Splits: make(map[string]*Split, 2*len(heights))}

	for _, h := range heights {
		params, err := preset.Params(h)
		if err != nil {
			return nil, err
		}

		c := collector.New(gen.Func())
		c.SetMaxAttempts(opts.MaxAttempts)
		if opts.Observe != nil {
			c.AddObserver(collector.ObserverFunc(func(p collector.Progress) { opts.Observe(h, p) }))
		}

		batch, err := c.Collect(ctx, params, opts.NumSamples, opts.PctFall)
		if err != nil {
			return nil, fmt.Errorf("height %d: %w", h, err)
		}

		ds.Splits[Key(h, false)] = SplitExamples(label(batch.Stable, LabelStable, h), opts.TestSize, rng)
		ds.Splits[Key(h, true)] = SplitExamples(label(batch.Unstable, LabelUnstable, h), opts.TestSize, rng)

		if opts.OnHeight != nil {
			opts.OnHeight(h, batch)
		}
	}

	return ds, nil
}

func label(towers []tower.Tower, lbl, height int) []Example {
	out := make([]Example, len(towers))
	for i, t := range towers {
		out[i] = Example{Tower: t, Label: lbl, NumBlocks: height}
	}
	return out
}

// SplitExamples shuffles examples with rng and puts ceil(n*testSize) of them
// in the test set.
func SplitExamples(examples []Example, testSize float64, rng *rand.Rand) *Split {
	shuffled := make([]Example, len(examples))
	copy(shuffled, examples)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	nTest := int(math.Ceil(float64(len(shuffled)) * testSize))
	return &Split{
		Train: shuffled[nTest:],
		Test:  shuffled[:nTest],
	}
}
