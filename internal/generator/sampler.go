package generator

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/harvard-visionlab/block-towers/internal/tower"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultMaxAttempts bounds the redraw rounds of a single bounded draw.
const DefaultMaxAttempts = 10000

// Sampler draws truncated normal values by rejection. It is not safe for
// concurrent use; give each goroutine its own Sampler.
type Sampler struct {
	src         rand.Source
	maxAttempts int
}

// NewSampler returns a Sampler seeded deterministically from seed. A
// non-positive maxAttempts selects DefaultMaxAttempts.
func NewSampler(seed uint64, maxAttempts int) *Sampler {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Sampler{
		src:         rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
		maxAttempts: maxAttempts,
	}
}

// BoundedNormal draws one value from N(mu, std) restricted to
// [mu+lower, mu+upper].
func (s *Sampler) BoundedNormal(mu, std, lower, upper float64) (float64, error) {
	out := make([]float64, 1)
	if err := s.BoundedNormalN(mu, std, lower, upper, out); err != nil {
		return 0, err
	}
	return out[0], nil
}

// BoundedNormalN fills out with draws from N(mu, std) restricted to
// [mu+lower, mu+upper]. Only out-of-bounds elements are redrawn; accepted
// elements are never touched again. Each redraw round counts as one attempt.
func (s *Sampler) BoundedNormalN(mu, std, lower, upper float64, out []float64) error {
	if math.IsNaN(std) || std < 0 {
		return fmt.Errorf("%w: std must be non-negative, got %v", tower.ErrInvalidParam, std)
	}
	if !(lower < upper) {
		return fmt.Errorf("%w: lower %v >= upper %v", tower.ErrInvalidBounds, lower, upper)
	}

	dist := distuv.Normal{Mu: mu, Sigma: std, Src: s.src}
	lo, hi := mu+lower, mu+upper

	for i := range out {
		out[i] = dist.Rand()
	}
	pending := outOfBounds(out, lo, hi)

	for attempt := 1; len(pending) > 0; attempt++ {
		if attempt > s.maxAttempts {
			return &tower.UnreachableError{
				Op:       "bounded normal",
				Attempts: s.maxAttempts,
				Detail:   fmt.Sprintf("%d of %d draws outside [%g, %g]", len(pending), len(out), lo, hi),
			}
		}
		for _, i := range pending {
			out[i] = dist.Rand()
		}
		pending = stillOut(out, lo, hi, pending)
	}

	return nil
}

func outOfBounds(v []float64, lo, hi float64) []int {
	idx := make([]int, 0)
	for i, x := range v {
		if x < lo || x > hi {
			idx = append(idx, i)
		}
	}
	return idx
}

// stillOut filters idx in place, keeping indices whose value is still out of bounds.
func stillOut(v []float64, lo, hi float64, idx []int) []int {
	n := 0
	for _, i := range idx {
		if v[i] < lo || v[i] > hi {
			idx[n] = i
			n++
		}
	}
	return idx[:n]
}
