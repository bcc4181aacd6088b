// Package physics provides the built-in simulation backend for block towers.
//
// [Kinematic] implements [engine.Engine] without an external physics
// library. It is deterministic, so recorded trajectories replay exactly:
//
//	reg := engine.NewRegistry()
//	physics.Register(reg)
//	factory, _ := reg.Get(physics.Backend)
//	eng, _ := factory(scn)
//
// The model parameters are adjustable at runtime:
//
//	k, _ := physics.NewKinematic(scn)
//	k.SetParam("gravity", 1.62)
package physics
