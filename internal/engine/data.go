package engine

import (
	"math"

	"github.com/san-kum/robotview/internal/dynamo"
	"github.com/san-kum/robotview/internal/integrators"
)

// Data is the mutable simulation state for one Model. Step and Reset mutate
// it in place; it is not safe for concurrent use.
type Data struct {
	Time       float64
	Qpos       []float64
	Qvel       []float64
	Ctrl       []float64
	ActForce   []float64
	Sensordata []float64

	integ dynamo.Integrator
	x     dynamo.State
	u     dynamo.Control
}

// NewData allocates state for m at its reference configuration.
func NewData(m *Model) (*Data, error) {
	integ, err := integrators.New(m.Integrator)
	if err != nil {
		return nil, err
	}
	d := &Data{
		Qpos:       make([]float64, m.nq),
		Qvel:       make([]float64, m.nv),
		Ctrl:       make([]float64, m.NU()),
		ActForce:   make([]float64, m.NU()),
		Sensordata: make([]float64, m.NSensor()),
		integ:      integ,
		x:          make(dynamo.State, 2*len(m.coords)),
		u:          make(dynamo.Control, m.NU()),
	}
	Reset(m, d)
	return d, nil
}

// Reset restores the reference configuration: scalar joints at ref, ball
// and free joints at the identity orientation, zero velocity, zero control.
func Reset(m *Model, d *Data) {
	d.Time = 0
	for i := range d.Qvel {
		d.Qvel[i] = 0
	}
	for i := range d.Ctrl {
		d.Ctrl[i] = 0
	}
	for _, j := range m.Joints {
		q := d.Qpos[j.QposAdr : j.QposAdr+qposSize[j.Type]]
		for i := range q {
			q[i] = 0
		}
		switch j.Type {
		case JointHinge, JointSlide:
			q[0] = j.Ref
		case JointBall:
			q[0] = 1
		case JointFree:
			q[3] = 1
		}
	}
	d.pack(m)
	d.forward(m)
}

// Step advances d by one Model.Timestep. Controls outside a limited
// ctrlrange are clamped for the step but left untouched in d.Ctrl. A step
// that would produce NaN or Inf is rejected and d is left unchanged.
func Step(m *Model, d *Data) error {
	if len(d.Ctrl) != m.NU() || len(d.Qpos) != m.nq {
		return dynamo.ErrDimensionMismatch
	}
	for i, a := range m.Actuators {
		d.u[i] = clampCtrl(a, d.Ctrl[i])
	}
	d.pack(m)

	next := d.integ.Step(m.dyn, d.x, d.u, d.Time, m.Timestep)
	if !next.IsValid() {
		return dynamo.ErrInvalidState
	}
	copy(d.x, next)
	d.unpack(m)
	d.Time += m.Timestep
	d.forward(m)
	return nil
}

func clampCtrl(a Actuator, u float64) float64 {
	if math.IsNaN(u) {
		return 0
	}
	if !a.CtrlLimited {
		return u
	}
	return math.Max(a.CtrlRange[0], math.Min(a.CtrlRange[1], u))
}

func (d *Data) pack(m *Model) {
	n := len(m.coords)
	for c, ji := range m.coords {
		j := m.Joints[ji]
		d.x[c] = d.Qpos[j.QposAdr]
		d.x[n+c] = d.Qvel[j.DofAdr]
	}
}

func (d *Data) unpack(m *Model) {
	n := len(m.coords)
	for c, ji := range m.coords {
		j := m.Joints[ji]
		d.Qpos[j.QposAdr] = d.x[c]
		d.Qvel[j.DofAdr] = d.x[n+c]
	}
}

// forward recomputes actuator forces and sensor readings for the current state.
func (d *Data) forward(m *Model) {
	for i, a := range m.Actuators {
		d.u[i] = clampCtrl(a, d.Ctrl[i])
		d.ActForce[i] = m.dyn.DriveForce(i, d.x, d.u[i])
	}
	for i, s := range m.Sensors {
		d.Sensordata[i] = d.sensor(m, s)
	}
}

func (d *Data) sensor(m *Model, s Sensor) float64 {
	switch s.Kind {
	case "jointpos", "jointvel":
		if s.Joint < 0 || m.Joints[s.Joint].Coord < 0 {
			return 0
		}
		j := m.Joints[s.Joint]
		if s.Kind == "jointpos" {
			return d.Qpos[j.QposAdr]
		}
		return d.Qvel[j.DofAdr]
	case "actuatorpos", "actuatorvel":
		if s.Actuator < 0 {
			return 0
		}
		a := m.Actuators[s.Actuator]
		if a.Joint < 0 || m.Joints[a.Joint].Coord < 0 {
			return 0
		}
		j := m.Joints[a.Joint]
		if s.Kind == "actuatorpos" {
			return a.Gear * d.Qpos[j.QposAdr]
		}
		return a.Gear * d.Qvel[j.DofAdr]
	case "actuatorfrc":
		if s.Actuator < 0 {
			return 0
		}
		return d.ActForce[s.Actuator]
	default:
		return 0
	}
}

// State is the packed scalar-joint state [q..., v...] seen by Model.System.
// It is owned by d and must not be modified.
func (d *Data) State() dynamo.State { return d.x }

// Energy reports the kinetic plus spring energy of the scalar joints.
func (d *Data) Energy(m *Model) float64 {
	return m.dyn.Energy(d.x)
}
