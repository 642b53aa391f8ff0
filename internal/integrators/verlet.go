package integrators

import "github.com/san-kum/robotview/internal/dynamo"

// Verlet is velocity Verlet for states laid out as [q..., v...]. The second
// acceleration is evaluated with the old velocities, which is exact for
// undamped joints and first-order in the damping term.
type Verlet struct {
	scratch dynamo.State
}

func NewVerlet() *Verlet {
	return &Verlet{}
}

func (v *Verlet) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	half := n / 2
	if len(v.scratch) != n {
		v.scratch = make(dynamo.State, n)
	}

	result := make(dynamo.State, n)
	dx := dyn.Derive(x, u, t)
	for i := 0; i < half; i++ {
		result[i] = x[i] + x[half+i]*dt + 0.5*dx[half+i]*dt*dt
	}

	copy(v.scratch[:half], result[:half])
	copy(v.scratch[half:], x[half:])
	dxNew := dyn.Derive(v.scratch, u, t+dt)

	for i := 0; i < half; i++ {
		result[half+i] = x[half+i] + 0.5*(dx[half+i]+dxNew[half+i])*dt
	}
	return result
}
