package metrics

import "time"

// Pacing measures how much of each loop period is spent working. Value is
// the mean utilization; above 1 the loop cannot hold its rate.
type Pacing struct {
	period  time.Duration
	work    time.Duration
	maxWork time.Duration
	samples int
}

func NewPacing(period time.Duration) *Pacing {
	return &Pacing{period: period}
}

func (p *Pacing) Name() string { return "pacing_utilization" }

// ObserveWork records the time one iteration spent before pacing.
func (p *Pacing) ObserveWork(d time.Duration) {
	p.work += d
	p.maxWork = max(p.maxWork, d)
	p.samples++
}

func (p *Pacing) Value() float64 {
	if p.samples == 0 || p.period <= 0 {
		return 0
	}
	return float64(p.work) / float64(p.samples) / float64(p.period)
}

// MaxWork is the longest single iteration observed.
func (p *Pacing) MaxWork() time.Duration { return p.maxWork }

func (p *Pacing) Reset() {
	p.work = 0
	p.maxWork = 0
	p.samples = 0
}
