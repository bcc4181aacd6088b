// Package tower defines the geometry of block towers.
//
// A [Tower] is an ordered stack of [Block] values: index 0 rests on the
// ground and block i rests on block i-1. The package holds no behavior beyond
// validation and rescaling; stability analysis lives in package stability.
//
//   - [Block]: a rectangular prism with position, full side lengths,
//     orientation and optional mass/density
//   - [Tower]: the stack, with [Tower.Validate] enforcing the geometric
//     preconditions shared by every consumer
//
// # Errors
//
// The domain errors used across the module ([ErrEmptyTower],
// [ErrUnreachable], [ErrOutOfSync], ...) are declared here so that callers
// can match them with errors.Is regardless of which package produced them.
package tower
