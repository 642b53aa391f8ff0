package integrators

import "github.com/san-kum/robotview/internal/dynamo"

// Euler is the explicit forward Euler method.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	dx := dyn.Derive(x, u, t)
	result := make(dynamo.State, len(x))
	axpy(result, x, dt, dx)
	return result
}

// SemiImplicit is symplectic Euler for states laid out as [q..., v...]:
// velocities are advanced first and positions use the new velocities.
type SemiImplicit struct{}

func NewSemiImplicit() *SemiImplicit {
	return &SemiImplicit{}
}

func (s *SemiImplicit) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	half := n / 2
	dx := dyn.Derive(x, u, t)

	result := make(dynamo.State, n)
	for i := 0; i < half; i++ {
		v := x[half+i] + dt*dx[half+i]
		result[half+i] = v
		result[i] = x[i] + dt*v
	}
	return result
}

// axpy writes x + a*y into dst.
func axpy(dst, x dynamo.State, a float64, y dynamo.State) {
	for i := range dst {
		dst[i] = x[i] + a*y[i]
	}
}
