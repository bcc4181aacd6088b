// Package trajectory records physics runs at video rate and replays them in
// exact lock-step.
//
// The engine integrates at a fine timestep while frames are kept at a
// coarser framerate. [Record] snapshots every body whenever the number of
// stored frames does not yet exceed time*framerate, so frame indices are
// gapless and each frame remembers the exact step count and time it was
// taken at. [Replay] re-steps a fresh engine to those step counts, requires
// the times to match exactly, and then forces the stored poses onto the
// engine before rendering: the record is authoritative, not the live engine.
//
// # Thread Safety
//
// Engines are not safe for concurrent use. [Batch] runs simulations in
// parallel and gives every simulation its own engine.
package trajectory
