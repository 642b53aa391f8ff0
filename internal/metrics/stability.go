package metrics

import (
	"math"

	"github.com/san-kum/robotview/internal/dynamo"
)

// Bounded is the fraction of steps whose controls all stayed within
// ±bound. An empty session counts as fully bounded.
type Bounded struct {
	bound      float64
	violations int
	samples    int
}

func NewBounded(bound float64) *Bounded {
	return &Bounded{bound: bound}
}

func (b *Bounded) Name() string { return "control_bounded" }

func (b *Bounded) Observe(_ dynamo.State, u dynamo.Control, _ float64) {
	b.samples++
	for _, v := range u {
		if math.Abs(v) > b.bound+1e-12 {
			b.violations++
			return
		}
	}
}

func (b *Bounded) Value() float64 {
	if b.samples == 0 {
		return 1
	}
	return 1 - float64(b.violations)/float64(b.samples)
}

func (b *Bounded) Reset() {
	b.violations = 0
	b.samples = 0
}
