// Package pacer runs a step callback at a fixed target rate.
//
// Each iteration records its start time, runs the step, then sleeps for
// whatever is left of the period. An iteration that overruns its budget is
// not compensated: the next one starts immediately and there is no
// catch-up or frame skipping.
package pacer

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// Clock is the subset of clock.Clock the pacer needs.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// StepFunc runs one iteration. Returning false ends the loop without error.
type StepFunc func(ctx context.Context) (bool, error)

type Pacer struct {
	clk      Clock
	period   time.Duration
	ticks    int
	overruns int
	slept    time.Duration
}

// New returns a pacer targeting hz iterations per second. A nil clk uses
// the wall clock.
func New(hz float64, clk Clock) *Pacer {
	if clk == nil {
		clk = clock.New()
	}
	return &Pacer{
		clk:    clk,
		period: time.Duration(float64(time.Second) / hz),
	}
}

func (p *Pacer) Period() time.Duration { return p.period }
func (p *Pacer) Clock() Clock          { return p.clk }

// Remaining is the part of the period left after an iteration that began at
// start. It is never negative.
func (p *Pacer) Remaining(start time.Time) time.Duration {
	left := p.period - p.clk.Now().Sub(start)
	if left < 0 {
		return 0
	}
	return left
}

// Tick sleeps out the rest of the period for an iteration that began at
// start and returns how long it slept.
func (p *Pacer) Tick(start time.Time) time.Duration {
	p.ticks++
	left := p.Remaining(start)
	if left <= 0 {
		if p.clk.Now().Sub(start) > p.period {
			p.overruns++
		}
		return 0
	}
	p.clk.Sleep(left)
	p.slept += left
	return left
}

// Run calls step then Tick until step returns false or an error, or ctx is
// done. Cancellation is checked once per iteration, before the step.
func (p *Pacer) Run(ctx context.Context, step StepFunc) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := p.clk.Now()
		more, err := step(ctx)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		p.Tick(start)
	}
}

// Stats reports completed ticks, overrun ticks and total time slept.
func (p *Pacer) Stats() (ticks, overruns int, slept time.Duration) {
	return p.ticks, p.overruns, p.slept
}
