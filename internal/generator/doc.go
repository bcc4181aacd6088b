// Package generator produces random block towers.
//
// A [Sampler] draws truncated normal values by rejection: draws outside the
// bounds are redrawn until every value lands inside, up to an attempt budget
// after which the draw fails with tower.ErrUnreachable. A [Generator] uses
// the sampler to jitter each block relative to the one below and labels the
// finished tower with package stability.
//
// # Example
//
//	gen := generator.NewSeeded(42, 0)
//	t, err := gen.Generate(generator.Params{
//	    NumBlocks: 4, SideLength: 0.4, Std: 0.28, Truncate: 0.65,
//	})
//
// # Thread Safety
//
// Samplers and Generators hold a random source and are NOT safe for
// concurrent use.
package generator
