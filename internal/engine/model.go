// Package engine is the simulation boundary the driver talks to: an
// immutable [Model] loaded once, a mutable [Data] owned by the caller, and
// [Step] to advance Data by one timestep.
package engine

import (
	"github.com/pkg/errors"

	"github.com/san-kum/robotview/internal/dynamo"
	"github.com/san-kum/robotview/internal/mjcf"
	"github.com/san-kum/robotview/internal/physics"
)

type JointType string

const (
	JointHinge JointType = "hinge"
	JointSlide JointType = "slide"
	JointBall  JointType = "ball"
	JointFree  JointType = "free"
)

// qposSize and dofSize give the coordinates each joint type contributes.
var (
	qposSize = map[JointType]int{JointHinge: 1, JointSlide: 1, JointBall: 4, JointFree: 7}
	dofSize  = map[JointType]int{JointHinge: 1, JointSlide: 1, JointBall: 3, JointFree: 6}
)

type Joint struct {
	Name    string
	Body    string
	Type    JointType
	QposAdr int
	DofAdr  int
	// Coord is the index among scalar joints, or -1 for ball and free joints.
	Coord     int
	Limited   bool
	Range     [2]float64
	Ref       float64
	Damping   float64
	Stiffness float64
	Armature  float64
}

type Actuator struct {
	Name        string
	Kind        string
	Joint       int // -1 when the transmission is not a joint
	Gear        float64
	Kp          float64
	Kv          float64
	CtrlLimited bool
	CtrlRange   [2]float64
}

type Sensor struct {
	Name     string
	Kind     string
	Joint    int
	Actuator int
}

// Model is the static description of the robot. It is not modified after
// Load returns.
type Model struct {
	Name       string
	Path       string
	Timestep   float64
	Integrator string

	Joints    []Joint
	Actuators []Actuator
	Sensors   []Sensor

	nq, nv int
	coords []int // joint index per scalar coordinate
	dyn    *physics.JointSpace
}

func (m *Model) NJnt() int    { return len(m.Joints) }
func (m *Model) NU() int      { return len(m.Actuators) }
func (m *Model) NSensor() int { return len(m.Sensors) }
func (m *Model) NQ() int      { return m.nq }
func (m *Model) NV() int      { return m.nv }

// JointName returns the name of joint i, or "" when it is unnamed or out of range.
func (m *Model) JointName(i int) string {
	if i < 0 || i >= len(m.Joints) {
		return ""
	}
	return m.Joints[i].Name
}

func (m *Model) ActuatorName(i int) string {
	if i < 0 || i >= len(m.Actuators) {
		return ""
	}
	return m.Actuators[i].Name
}

// System exposes the dynamics for energy reporting.
func (m *Model) System() dynamo.System { return m.dyn }

// LoadOption adjusts how a model is built.
type LoadOption func(*Model)

// WithIntegrator selects the integrator used by Step. The name is checked
// when Data is created.
func WithIntegrator(name string) LoadOption {
	return func(m *Model) { m.Integrator = name }
}

// WithTimestep overrides the timestep declared in the description.
func WithTimestep(dt float64) LoadOption {
	return func(m *Model) {
		if dt > 0 {
			m.Timestep = dt
		}
	}
}

// Load reads the description at path and builds a Model.
func Load(path string, opts ...LoadOption) (*Model, error) {
	doc, err := mjcf.Load(path)
	if err != nil {
		return nil, err
	}
	m, err := NewModel(doc, opts...)
	if err != nil {
		return nil, err
	}
	m.Path = path
	return m, nil
}

// NewModel builds a Model from an already parsed document.
func NewModel(doc *mjcf.Document, opts ...LoadOption) (*Model, error) {
	m := &Model{
		Name:       doc.Model,
		Timestep:   doc.Timestep,
		Integrator: "rk4",
	}
	if m.Timestep <= 0 {
		m.Timestep = mjcf.DefaultTimestep
	}

	jointIndex := make(map[string]int, len(doc.Joints))
	var coords []physics.Coordinate
	for i, dj := range doc.Joints {
		typ := JointType(dj.Type)
		if _, ok := qposSize[typ]; !ok {
			return nil, errors.Errorf("joint %q: unsupported type %q", dj.Name, dj.Type)
		}
		j := Joint{
			Name:      dj.Name,
			Body:      dj.Body,
			Type:      typ,
			QposAdr:   m.nq,
			DofAdr:    m.nv,
			Coord:     -1,
			Limited:   dj.Limited,
			Range:     dj.Range,
			Ref:       dj.Ref,
			Damping:   dj.Damping,
			Stiffness: dj.Stiffness,
			Armature:  dj.Armature,
		}
		m.nq += qposSize[typ]
		m.nv += dofSize[typ]
		if typ == JointHinge || typ == JointSlide {
			j.Coord = len(coords)
			m.coords = append(m.coords, i)
			coords = append(coords, physics.Coordinate{
				Inertia:   dj.Armature,
				Damping:   dj.Damping,
				Stiffness: dj.Stiffness,
				SpringRef: dj.SpringRef,
				Limited:   dj.Limited,
				Range:     dj.Range,
			})
		}
		if dj.Name != "" {
			jointIndex[dj.Name] = i
		}
		m.Joints = append(m.Joints, j)
	}

	actuatorIndex := make(map[string]int, len(doc.Actuators))
	drives := make([]physics.Drive, 0, len(doc.Actuators))
	for i, da := range doc.Actuators {
		a := Actuator{
			Name:        da.Name,
			Kind:        da.Kind,
			Joint:       -1,
			Gear:        da.Gear,
			Kp:          da.Kp,
			Kv:          da.Kv,
			CtrlLimited: da.CtrlLimited,
			CtrlRange:   da.CtrlRange,
		}
		drive := physics.Drive{Kind: driveKind(da.Kind), Coord: -1, Gear: da.Gear, Kp: da.Kp, Kv: da.Kv}
		if da.Joint != "" {
			j, ok := jointIndex[da.Joint]
			if !ok {
				return nil, errors.Wrapf(dynamo.ErrUnknownJoint, "actuator %q references %q", da.Name, da.Joint)
			}
			a.Joint = j
			drive.Coord = m.Joints[j].Coord
		}
		if da.Name != "" {
			actuatorIndex[da.Name] = i
		}
		m.Actuators = append(m.Actuators, a)
		drives = append(drives, drive)
	}

	for _, ds := range doc.Sensors {
		s := Sensor{Name: ds.Name, Kind: ds.Kind, Joint: -1, Actuator: -1}
		if ds.Joint != "" {
			j, ok := jointIndex[ds.Joint]
			if !ok {
				return nil, errors.Wrapf(dynamo.ErrUnknownJoint, "sensor %q references %q", ds.Name, ds.Joint)
			}
			s.Joint = j
		}
		if ds.Actuator != "" {
			a, ok := actuatorIndex[ds.Actuator]
			if !ok {
				return nil, errors.Errorf("sensor %q references unknown actuator %q", ds.Name, ds.Actuator)
			}
			s.Actuator = a
		}
		m.Sensors = append(m.Sensors, s)
	}

	for _, opt := range opts {
		opt(m)
	}
	m.dyn = physics.NewJointSpace(coords, drives)
	return m, nil
}

func driveKind(kind string) physics.DriveKind {
	switch kind {
	case "position":
		return physics.DrivePosition
	case "velocity":
		return physics.DriveVelocity
	default:
		return physics.DriveMotor
	}
}
