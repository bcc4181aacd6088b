package staircase

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/harvard-visionlab/block-towers/internal/generator"
	"github.com/harvard-visionlab/block-towers/internal/stability"
)

// MonteCarlo builds a Measure that generates n towers from base with the
// requested std and returns the fraction that fall.
func MonteCarlo(gen generator.Func, base generator.Params) Measure {
	return func(ctx context.Context, std float64, n int) (float64, error) {
		p := base.WithStd(std)
		falls := make([]float64, n)
		for i := range falls {
			if i%256 == 0 {
				select {
				case <-ctx.Done():
					return 0, ctx.Err()
				default:
				}
			}

			t, err := gen(p)
			if err != nil {
				return 0, fmt.Errorf("sample %d: %w", i, err)
			}
			fall, _, err := stability.PredictFall(t)
			if err != nil {
				return 0, fmt.Errorf("sample %d: %w", i, err)
			}
			if fall {
				falls[i] = 1
			}
		}
		return stat.Mean(falls, nil), nil
	}
}
