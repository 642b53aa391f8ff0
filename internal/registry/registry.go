// Package registry maps configuration names to integrators, controllers
// and viewers.
package registry

import (
	"fmt"
	"sort"

	"github.com/san-kum/robotview/internal/config"
	"github.com/san-kum/robotview/internal/control"
	"github.com/san-kum/robotview/internal/dynamo"
	"github.com/san-kum/robotview/internal/engine"
	"github.com/san-kum/robotview/internal/integrators"
	"github.com/san-kum/robotview/internal/metrics"
	"github.com/san-kum/robotview/internal/viewer"
)

// ControllerFactory builds a controller producing dim channels.
type ControllerFactory func(dim int, sig config.SignalConfig) dynamo.Controller

type Registry struct {
	controllers map[string]ControllerFactory
	viewers     map[string]viewer.Factory
}

func NewRegistry() *Registry {
	r := &Registry{
		controllers: make(map[string]ControllerFactory),
		viewers:     make(map[string]viewer.Factory),
	}

	r.controllers["sine"] = func(dim int, sig config.SignalConfig) dynamo.Controller {
		return control.NewSine(dim, control.SineParams{
			Amplitude: sig.Amplitude,
			Omega:     sig.Omega,
			PhaseStep: sig.PhaseStep,
		})
	}
	r.controllers["none"] = func(dim int, _ config.SignalConfig) dynamo.Controller {
		return control.NewNone(dim)
	}

	r.RegisterViewer("terminal", viewer.TerminalFactory)
	r.RegisterViewer("headless", viewer.HeadlessFactory)

	return r
}

// RegisterViewer adds or replaces a viewer factory.
func (r *Registry) RegisterViewer(name string, f viewer.Factory) {
	r.viewers[name] = f
}

func (r *Registry) GetController(name string, dim int, sig config.SignalConfig) (dynamo.Controller, error) {
	fn, ok := r.controllers[name]
	if !ok {
		return nil, fmt.Errorf("unknown controller: %s (available: %v)", name, r.ListControllers())
	}
	return fn(dim, sig), nil
}

func (r *Registry) GetViewer(name string) (viewer.Factory, error) {
	fn, ok := r.viewers[name]
	if !ok {
		return nil, fmt.Errorf("unknown viewer: %s (available: %v)", name, r.ListViewers())
	}
	return fn, nil
}

func (r *Registry) ListIntegrators() []string { return integrators.Names() }
func (r *Registry) ListControllers() []string { return sortedKeys(r.controllers) }
func (r *Registry) ListViewers() []string     { return sortedKeys(r.viewers) }

// DefaultMetrics are the session metrics the driver reports at exit.
// bound is the largest control magnitude the controller should produce.
func (r *Registry) DefaultMetrics(m *engine.Model, bound float64) []dynamo.Metric {
	return []dynamo.Metric{
		metrics.NewControlEffort(),
		metrics.NewPeakControl(),
		metrics.NewBounded(bound),
		metrics.NewEnergy(m.System()),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
