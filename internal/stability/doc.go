// Package stability predicts whether a block tower collapses under gravity
// without running a physics engine.
//
// The rule is the classic stacking criterion: block i falls if and only if the
// center of mass of block i and every block above it lies strictly outside
// the footprint of block i-1, on either horizontal axis. Every block is
// treated as unit mass, so the load centroid is the plain mean of the block
// centers; supplied masses and densities are ignored.
//
//   - [PredictFall]: per-block fall flags and the tower-level OR
//   - [Label]: writes the flags into the tower in place
//   - [Compute]: continuous margins ([Metrics]) for graded labels
//   - [ShapeCode], [AllShapes]: categorical silhouette descriptors
//
// # Example
//
//	fall, perBlock, err := stability.PredictFall(t)
//	m, err := stability.Compute(t)
//	if m.MaxCentroidEdgeDistance > 0 {
//	    // at least one block overhangs its support
//	}
package stability
