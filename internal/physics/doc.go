// Package physics provides the joint-space dynamics behind the engine.
//
// [JointSpace] implements [dynamo.System]: every hinge or slide joint of the
// robot is a scalar coordinate with its own inertia, damping, stiffness and
// soft range limit, and every actuator is a [Drive] on one coordinate.
// Coordinates are independent; there is no gravity, no body coupling and no
// contact. It stands in for a full rigid-body engine so that the viewer can
// show actuated motion.
//
// # Energy
//
// [JointSpace.Energy] reports kinetic plus spring energy:
//
//	js := physics.NewJointSpace(coords, drives)
//	e := js.Energy(state)
package physics
