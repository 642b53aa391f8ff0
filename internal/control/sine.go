package control

import (
	"fmt"
	"math"

	"github.com/san-kum/robotview/internal/dynamo"
)

// SineParams shapes the waveform u[i] = Amplitude * sin(Omega*t + i*PhaseStep).
type SineParams struct {
	Amplitude float64
	Omega     float64
	PhaseStep float64
}

// DefaultSineParams is the demo gait: 0.3 amplitude, 0.5 rad/s, quarter-pi
// phase lag between neighbouring actuators.
func DefaultSineParams() SineParams {
	return SineParams{Amplitude: 0.3, Omega: 0.5, PhaseStep: math.Pi / 4}
}

// Sine drives dim actuators with phase-shifted sine waves. It ignores the
// state: the output depends only on t and the actuator index.
type Sine struct {
	dim    int
	params SineParams
}

// NewSine returns a generator for dim channels. Negative dims are treated as 0.
func NewSine(dim int, p SineParams) *Sine {
	if dim < 0 {
		dim = 0
	}
	return &Sine{dim: dim, params: p}
}

func (s *Sine) Dim() int { return s.dim }

func (s *Sine) Compute(_ dynamo.State, t float64) dynamo.Control {
	u := make(dynamo.Control, s.dim)
	for i := range u {
		u[i] = s.params.Amplitude * math.Sin(s.params.Omega*t+float64(i)*s.params.PhaseStep)
	}
	return u
}

// GetParams implements dynamo.Configurable.
func (s *Sine) GetParams() map[string]float64 {
	return map[string]float64{
		"amplitude": s.params.Amplitude,
		"omega":     s.params.Omega,
		"phase":     s.params.PhaseStep,
	}
}

// SetParam implements dynamo.Configurable
func (s *Sine) SetParam(name string, value float64) error {
	switch name {
	case "amplitude":
		s.params.Amplitude = value
	case "omega":
		s.params.Omega = value
	case "phase":
		s.params.PhaseStep = value
	default:
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParam, name)
	}
	return nil
}

// Channels returns how many actuators a capped controller drives.
func Channels(actuators, limit int) int {
	if limit < 0 {
		limit = 0
	}
	if actuators < limit {
		if actuators < 0 {
			return 0
		}
		return actuators
	}
	return limit
}
