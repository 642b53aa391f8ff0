package metrics

import (
	"math"

	"github.com/san-kum/robotview/internal/dynamo"
)

// Energy tracks the most recent energy of a system and the largest
// excursion from the first observed value. Systems that do not report
// energy leave it at zero.
type Energy struct {
	dyn     dynamo.System
	initial float64
	current float64
	maxDev  float64
	samples int
}

func NewEnergy(dyn dynamo.System) *Energy {
	return &Energy{dyn: dyn}
}

func (e *Energy) Name() string { return "energy" }

func (e *Energy) Observe(x dynamo.State, _ dynamo.Control, _ float64) {
	h, ok := e.dyn.(dynamo.Hamiltonian)
	if !ok {
		return
	}
	en := h.Energy(x)
	if e.samples == 0 {
		e.initial = en
	}
	e.current = en
	e.maxDev = math.Max(e.maxDev, math.Abs(en-e.initial))
	e.samples++
}

func (e *Energy) Value() float64 { return e.current }

// MaxDeviation is the largest |E - E0| observed.
func (e *Energy) MaxDeviation() float64 { return e.maxDev }

func (e *Energy) Reset() {
	e.initial = 0
	e.current = 0
	e.maxDev = 0
	e.samples = 0
}
