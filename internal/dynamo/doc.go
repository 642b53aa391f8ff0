// Package dynamo provides core simulation primitives for the robot viewer.
//
// The package defines the fundamental interfaces and types shared by the
// engine, the controllers and the driver:
//
//   - [State]: vector representing system state
//   - [Control]: vector of actuator commands
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: numerical stepper interface
//   - [Controller]: control signal interface
//
// # Errors
//
// Failures surface as one of two tagged types so callers can tell them apart
// with [errors.As]:
//
//	var le *dynamo.LoadError   // model could not be read or built
//	var se *dynamo.StepError   // stepping or viewer sync failed mid-run
package dynamo
