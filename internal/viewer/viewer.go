// Package viewer defines what the driver needs from a viewer and provides
// a headless implementation and an interactive terminal one.
package viewer

import (
	"errors"
	"io"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/robotview/internal/engine"
)

var ErrClosed = errors.New("viewer closed")

// Viewer presents the simulation state once per loop iteration.
// IsRunning turns false when the user closes the viewer.
type Viewer interface {
	IsRunning() bool
	Sync(f Frame) error
	Close() error
}

// Controls is implemented by viewers that accept user input. TakeReset
// reports a pending reset request and clears it.
type Controls interface {
	Paused() bool
	TakeReset() bool
}

// Printer is implemented by viewers that own the terminal, so that
// diagnostic lines do not tear their rendering.
type Printer interface {
	Printf(format string, args ...any)
}

// Frame is a snapshot of one loop iteration. The slices may alias the
// driver's state; viewers that keep a frame beyond Sync must Clone it.
type Frame struct {
	Step         int
	Time         float64
	Qpos         []float64
	Qvel         []float64
	Ctrl         []float64
	StepDuration time.Duration
	Paused       bool
}

func (f Frame) Clone() Frame {
	f.Qpos = slices.Clone(f.Qpos)
	f.Qvel = slices.Clone(f.Qvel)
	f.Ctrl = slices.Clone(f.Ctrl)
	return f
}

type Options struct {
	// MaxFrames stops a headless viewer after that many syncs; 0 runs
	// until closed.
	MaxFrames int
	Theme     string
	// SignalBound is the expected magnitude of control values, used to
	// scale the control chart.
	SignalBound float64
	Input       io.Reader
	Output      io.Writer
	Logger      *zap.Logger
}

// Factory builds a viewer for a loaded model.
type Factory func(m *engine.Model, opts Options) (Viewer, error)

// Instructions returns the control help a viewer shows at startup, or ""
// for viewers without controls.
func Instructions(v Viewer) string {
	if _, ok := v.(Controls); !ok {
		return ""
	}
	return "controls: space pause/resume, ctrl+r reset, q or esc quit"
}
