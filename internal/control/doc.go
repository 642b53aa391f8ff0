// Package control provides open-loop control signals for the actuators.
//
// Controllers implement the [dynamo.Controller] interface:
//
//   - [Sine]: phase-shifted sine wave per actuator
//   - [None]: zero control
//
// # Usage
//
//	n := control.Channels(model.NU(), 9)
//	ctrl := control.NewSine(n, control.DefaultSineParams())
//	u := ctrl.Compute(nil, t)
//
// The sine signal is a placeholder to make the model move; it encodes no
// gait.
package control
