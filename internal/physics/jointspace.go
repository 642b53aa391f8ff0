package physics

import (
	"fmt"

	"github.com/san-kum/robotview/internal/dynamo"
)

// DriveKind selects how an actuator turns its control input into a
// generalized force.
type DriveKind int

const (
	// DriveMotor applies gear * u.
	DriveMotor DriveKind = iota
	// DrivePosition servos toward u: kp*(u - gear*q) - kv*gear*v.
	DrivePosition
	// DriveVelocity servos toward u: kv*(u - gear*v).
	DriveVelocity
)

// Coordinate is a single scalar degree of freedom (a hinge or slide joint).
type Coordinate struct {
	// Inertia is added to the base inertia, like MJCF armature.
	Inertia   float64
	Damping   float64
	Stiffness float64
	SpringRef float64
	Limited   bool
	Range     [2]float64
}

// Drive connects one control channel to one coordinate. Coord is -1 for
// actuators whose transmission has no scalar coordinate; they produce no force.
type Drive struct {
	Kind  DriveKind
	Coord int
	Gear  float64
	Kp    float64
	Kv    float64
}

// JointSpace integrates each coordinate as an independent damped
// second-order system driven by its actuators:
//
//	I*qdd = tau_act - d*qd - k*(q - springref) + tau_limit
//
// There is no coupling between coordinates, no gravity and no contact.
// State: [q1..qN, v1..vN]. Control: one entry per drive.
type JointSpace struct {
	coords []Coordinate
	drives []Drive

	limitStiffness float64
	limitDamping   float64
	minInertia     float64
}

// NewJointSpace returns a joint-space system with default limit and base
// inertia parameters.
func NewJointSpace(coords []Coordinate, drives []Drive) *JointSpace {
	return &JointSpace{
		coords:         coords,
		drives:         drives,
		limitStiffness: 200.0,
		limitDamping:   2.0,
		minInertia:     0.05,
	}
}

func (js *JointSpace) StateDim() int   { return 2 * len(js.coords) }
func (js *JointSpace) ControlDim() int { return len(js.drives) }

func (js *JointSpace) inertia(i int) float64 {
	if in := js.coords[i].Inertia; in > 0 {
		return js.minInertia + in
	}
	return js.minInertia
}

// DriveForce is the generalized force drive k exerts for control u and state x.
func (js *JointSpace) DriveForce(k int, x dynamo.State, u float64) float64 {
	d := js.drives[k]
	if d.Coord < 0 {
		return 0
	}
	n := len(js.coords)
	q, v := x[d.Coord], x[n+d.Coord]
	switch d.Kind {
	case DrivePosition:
		return d.Gear * (d.Kp*(u-d.Gear*q) - d.Kv*d.Gear*v)
	case DriveVelocity:
		return d.Gear * d.Kv * (u - d.Gear*v)
	default:
		return d.Gear * u
	}
}

func (js *JointSpace) Derive(x dynamo.State, u dynamo.Control, _ float64) dynamo.State {
	n := len(js.coords)
	deriv := make(dynamo.State, 2*n)

	tau := deriv[n:]
	for k := range js.drives {
		if k >= len(u) || js.drives[k].Coord < 0 {
			continue
		}
		tau[js.drives[k].Coord] += js.DriveForce(k, x, u[k])
	}

	for i, c := range js.coords {
		q, v := x[i], x[n+i]
		f := tau[i] - c.Damping*v - c.Stiffness*(q-c.SpringRef)
		if c.Limited {
			switch {
			case q < c.Range[0]:
				f += js.limitStiffness*(c.Range[0]-q) - js.limitDamping*v
			case q > c.Range[1]:
				f += js.limitStiffness*(c.Range[1]-q) - js.limitDamping*v
			}
		}
		deriv[i] = v
		deriv[n+i] = f / js.inertia(i)
	}
	return deriv
}

// Energy is the kinetic plus spring energy, ignoring limit penalties.
func (js *JointSpace) Energy(x dynamo.State) float64 {
	n := len(js.coords)
	e := 0.0
	for i, c := range js.coords {
		q, v := x[i], x[n+i]
		e += 0.5*js.inertia(i)*v*v + 0.5*c.Stiffness*(q-c.SpringRef)*(q-c.SpringRef)
	}
	return e
}

// GetParams implements dynamo.Configurable
func (js *JointSpace) GetParams() map[string]float64 {
	return map[string]float64{
		"limit_stiffness": js.limitStiffness,
		"limit_damping":   js.limitDamping,
		"min_inertia":     js.minInertia,
	}
}

// SetParam implements dynamo.Configurable
func (js *JointSpace) SetParam(name string, value float64) error {
	if value < 0 {
		return fmt.Errorf("%s must be non-negative, got %f", name, value)
	}
	switch name {
	case "limit_stiffness":
		js.limitStiffness = value
	case "limit_damping":
		js.limitDamping = value
	case "min_inertia":
		if value == 0 {
			return fmt.Errorf("min_inertia must be positive")
		}
		js.minInertia = value
	default:
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParam, name)
	}
	return nil
}
