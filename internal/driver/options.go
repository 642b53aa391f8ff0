package driver

import (
	"io"

	"go.uber.org/zap"

	"github.com/san-kum/robotview/internal/engine"
	"github.com/san-kum/robotview/internal/pacer"
	"github.com/san-kum/robotview/internal/registry"
	"github.com/san-kum/robotview/internal/storage"
	"github.com/san-kum/robotview/internal/viewer"
)

// Loader reads a model description. engine.Load is the default.
type Loader func(path string, opts ...engine.LoadOption) (*engine.Model, error)

type Option func(*Driver)

// WithClock replaces the wall clock used for pacing, the control signal
// and elapsed time.
func WithClock(c pacer.Clock) Option {
	return func(d *Driver) { d.clk = c }
}

// WithOutput sets where human-readable diagnostics go. Default os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(d *Driver) { d.out = w }
}

func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) { d.log = l }
}

func WithLoader(l Loader) Option {
	return func(d *Driver) { d.load = l }
}

// WithViewer uses f instead of looking up Config.Viewer in the registry.
func WithViewer(f viewer.Factory) Option {
	return func(d *Driver) { d.viewer = f }
}

// WithViewerInput sets the terminal viewer's key input. Default os.Stdin.
func WithViewerInput(r io.Reader) Option {
	return func(d *Driver) { d.input = r }
}

func WithRegistry(r *registry.Registry) Option {
	return func(d *Driver) { d.reg = r }
}

// WithStore records sessions into s instead of Config.Record.DataDir.
// Recording still requires Config.Record.Enabled.
func WithStore(s *storage.Store) Option {
	return func(d *Driver) { d.store = s }
}
