// Package staircase calibrates a generation parameter with an adaptive
// up/down search.
//
// Each iteration measures an outcome probability at the current value and
// steps the value up when the probability is below target and down
// otherwise. A change of direction is a reversal. Once more than half of the
// requested reversals are in, the batch size doubles and the step halves, once.
// The final estimate is the mean of the values at the last [EstimateTail]
// reversals.
//
// # Example
//
//	gen := generator.NewSeeded(1, 0)
//	base := generator.Params{NumBlocks: 4, SideLength: 0.4, Truncate: 0.65}
//	res, err := staircase.Calibrate(ctx, staircase.MonteCarlo(gen.Func(), base), staircase.DefaultConfig())
package staircase
