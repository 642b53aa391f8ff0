package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidState indicates a state vector with invalid dimensions or values.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates mismatched state/control dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	// ErrUnknownJoint indicates an element references a joint the model does not declare.
	ErrUnknownJoint = errors.New("dynamo: unknown joint")

	// ErrUnknownParam indicates a Configurable was asked for a parameter it does not expose.
	ErrUnknownParam = errors.New("dynamo: unknown parameter")
)

// LoadError reports a failure to read or build the model at Path.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// StepError reports a failure while advancing or displaying the simulation.
type StepError struct {
	Step int
	Time float64
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
