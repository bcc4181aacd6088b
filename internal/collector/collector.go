// Package collector gathers class-balanced batches of generated towers.
package collector

import (
	"context"
	"fmt"
	"math"

	"github.com/harvard-visionlab/block-towers/internal/generator"
	"github.com/harvard-visionlab/block-towers/internal/stability"
	"github.com/harvard-visionlab/block-towers/internal/tower"
)

// AttemptsPerSample scales the default attempt cap with the batch size.
const AttemptsPerSample = 1000

// Batch is the outcome of a collection. len(Stable)+len(Unstable) always
// equals the requested sample count.
type Batch struct {
	Stable   []tower.Tower
	Unstable []tower.Tower
	Attempts int
}

// Towers returns the stable towers followed by the unstable ones.
func (b *Batch) Towers() []tower.Tower {
	out := make([]tower.Tower, 0, len(b.Stable)+len(b.Unstable))
	out = append(out, b.Stable...)
	return append(out, b.Unstable...)
}

// Progress is reported to observers after every candidate.
type Progress struct {
	Attempts       int
	Stable         int
	Unstable       int
	StableQuota    int
	UnstableQuota  int
	CandidateFalls bool
	Kept           bool
}

type Observer interface {
	OnCandidate(p Progress)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(p Progress)

func (f ObserverFunc) OnCandidate(p Progress) { f(p) }

// Collector draws candidates from a generate function and keeps each one only
// while its class still needs samples.
type Collector struct {
	gen         generator.Func
	maxAttempts int
	observers   []Observer
}

func New(gen generator.Func) *Collector {
	return &Collector{gen: gen, observers: make([]Observer, 0)}
}

// SetMaxAttempts overrides the attempt cap. Non-positive values restore the
// default of AttemptsPerSample per requested sample.
func (c *Collector) SetMaxAttempts(n int) { c.maxAttempts = n }

func (c *Collector) AddObserver(o Observer) { c.observers = append(c.observers, o) }

// Quotas splits numSamples into unstable = floor(numSamples*pctFall) and
// stable = the remainder.
func Quotas(numSamples int, pctFall float64) (stable, unstable int) {
	unstable = int(math.Floor(float64(numSamples) * pctFall))
	return numSamples - unstable, unstable
}

// Collect generates towers with p until exactly the stable and unstable
// quotas are met.
func (c *Collector) Collect(ctx context.Context, p generator.Params, numSamples int, pctFall float64) (*Batch, error) {
	if numSamples < 1 {
		return nil, fmt.Errorf("%w: num_samples must be >= 1, got %d", tower.ErrInvalidParam, numSamples)
	}
	if math.IsNaN(pctFall) || pctFall < 0 || pctFall > 1 {
		return nil, fmt.Errorf("%w: pct_fall must be in [0, 1], got %v", tower.ErrInvalidParam, pctFall)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	stableQuota, unstableQuota := Quotas(numSamples, pctFall)
	limit := c.maxAttempts
	if limit <= 0 {
		limit = AttemptsPerSample * numSamples
	}

	batch := &Batch{
		Stable:   make([]tower.Tower, 0, stableQuota),
		Unstable: make([]tower.Tower, 0, unstableQuota),
	}

	for len(batch.Stable) < stableQuota || len(batch.Unstable) < unstableQuota {
		select {
		case <-ctx.Done():
			return batch, ctx.Err()
		default:
		}

		if batch.Attempts >= limit {
			return batch, &tower.UnreachableError{
				Op:       "collect",
				Attempts: batch.Attempts,
				Detail: fmt.Sprintf("have %d/%d stable, %d/%d unstable",
					len(batch.Stable), stableQuota, len(batch.Unstable), unstableQuota),
			}
		}

		batch.Attempts++
		t, err := c.gen(p)
		if err != nil {
			return batch, fmt.Errorf("collect: candidate %d: %w", batch.Attempts, err)
		}

		falls, _, err := stability.PredictFall(t)
		if err != nil {
			return batch, fmt.Errorf("collect: candidate %d: %w", batch.Attempts, err)
		}

		kept := false
		switch {
		case falls && len(batch.Unstable) < unstableQuota:
			batch.Unstable = append(batch.Unstable, t)
			kept = true
		case !falls && len(batch.Stable) < stableQuota:
			batch.Stable = append(batch.Stable, t)
			kept = true
		}

		for _, obs := range c.observers {
			obs.OnCandidate(Progress{
				Attempts:       batch.Attempts,
				Stable:         len(batch.Stable),
				Unstable:       len(batch.Unstable),
				StableQuota:    stableQuota,
				UnstableQuota:  unstableQuota,
				CandidateFalls: falls,
				Kept:           kept,
			})
		}
	}

	return batch, nil
}
