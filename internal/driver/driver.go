// Package driver runs the interactive simulation loop: load a model, then
// repeatedly compute controls, step the engine once, sync the viewer and
// sleep out the rest of the period, reporting progress every ReportEvery
// iterations.
package driver

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/san-kum/robotview/internal/config"
	"github.com/san-kum/robotview/internal/control"
	"github.com/san-kum/robotview/internal/dynamo"
	"github.com/san-kum/robotview/internal/engine"
	"github.com/san-kum/robotview/internal/logging"
	"github.com/san-kum/robotview/internal/metrics"
	"github.com/san-kum/robotview/internal/pacer"
	"github.com/san-kum/robotview/internal/registry"
	"github.com/san-kum/robotview/internal/storage"
	"github.com/san-kum/robotview/internal/viewer"
)

// Stats summarizes a finished run.
type Stats struct {
	Steps     int
	SimTime   float64
	Elapsed   time.Duration
	Overruns  int
	MaxWork   time.Duration
	SessionID string
	Metrics   map[string]float64
}

type Driver struct {
	cfg    config.Config
	clk    pacer.Clock
	out    io.Writer
	input  io.Reader
	log    *zap.Logger
	load   Loader
	reg    *registry.Registry
	viewer viewer.Factory
	store  *storage.Store

	stats Stats
}

func New(cfg config.Config, opts ...Option) *Driver {
	d := &Driver{
		cfg:  cfg,
		clk:  clock.New(),
		out:  os.Stdout,
		log:  logging.Nop(),
		load: engine.Load,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.reg == nil {
		d.reg = registry.NewRegistry()
	}
	return d
}

// Stats is valid after Run returns.
func (d *Driver) Stats() Stats { return d.stats }

// session is the state of one Run.
type session struct {
	d      *Driver
	model  *engine.Model
	data   *engine.Data
	ctrl   dynamo.Controller
	dim    int
	view   viewer.Viewer
	inputs viewer.Controls
	pace   *pacer.Pacer
	rec    *storage.Session

	metrics []dynamo.Metric
	pacing  *metrics.Pacing

	start time.Time
	steps int
}

// Run loads the model and drives the loop until the viewer closes, ctx is
// done, or Config.MaxSteps iterations have run. Load failures are
// *dynamo.LoadError and failures inside the loop are *dynamo.StepError.
// Cancellation is a normal exit.
func (d *Driver) Run(ctx context.Context) (err error) {
	if err := d.cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	s, err := d.setup()
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, s.close())
	}()

	fields := []zap.Field{
		zap.String("model", s.model.Name),
		zap.Duration("period", d.cfg.Period()),
		zap.Int("controls", s.dim),
		zap.String("integrator", s.model.Integrator),
	}
	if c, ok := s.ctrl.(dynamo.Configurable); ok {
		fields = append(fields, zap.Any("controller", c.GetParams()))
	}
	d.log.Info("session started", fields...)

	err = s.pace.Run(ctx, s.iterate)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		d.log.Info("interrupted", zap.Int("steps", s.steps))
		err = nil
	}
	if err != nil {
		d.log.Error("run failed", zap.Error(err))
	}
	return err
}

func (d *Driver) setup() (*session, error) {
	cfg := d.cfg
	fmt.Fprintf(d.out, "loading model: %s\n", cfg.ModelPath)

	m, err := d.load(cfg.ModelPath,
		engine.WithIntegrator(cfg.Integrator),
		engine.WithTimestep(cfg.Timestep))
	if err != nil {
		return nil, &dynamo.LoadError{Path: cfg.ModelPath, Err: err}
	}
	data, err := engine.NewData(m)
	if err != nil {
		return nil, &dynamo.LoadError{Path: cfg.ModelPath, Err: err}
	}
	d.printModel(m)

	dim := control.Channels(m.NU(), cfg.MaxActuators)
	ctrl, err := d.reg.GetController(cfg.Controller, dim, cfg.Signal)
	if err != nil {
		return nil, err
	}
	if err := applyParams(ctrl, m.System(), cfg.Params); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	bound := signalBound(ctrl)

	factory := d.viewer
	if factory == nil {
		if factory, err = d.reg.GetViewer(cfg.Viewer); err != nil {
			return nil, err
		}
	}

	s := &session{
		d:       d,
		model:   m,
		data:    data,
		ctrl:    ctrl,
		dim:     dim,
		pace:    pacer.New(cfg.RateHz, d.clk),
		metrics: d.reg.DefaultMetrics(m, bound),
	}
	s.pacing = metrics.NewPacing(s.pace.Period())

	if cfg.Record.Enabled {
		if s.rec, err = d.beginRecording(m, dim); err != nil {
			return nil, err
		}
	}

	fmt.Fprintf(d.out, "\nstarting viewer: %s\n", cfg.Viewer)
	s.view, err = factory(m, viewer.Options{
		MaxFrames:   cfg.MaxSteps,
		Theme:       cfg.Theme,
		SignalBound: bound,
		Input:       d.input,
		Output:      d.out,
		Logger:      d.log,
	})
	if err != nil {
		return nil, multierr.Append(errors.Wrap(err, "starting viewer"), s.closeRecording())
	}
	s.inputs, _ = s.view.(viewer.Controls)
	if help := viewer.Instructions(s.view); help != "" {
		s.printf("%s", help)
	}
	s.start = d.clk.Now()
	return s, nil
}

func (d *Driver) printModel(m *engine.Model) {
	fmt.Fprintf(d.out, "model loaded: %s\n", m.Name)
	fmt.Fprintf(d.out, "joints: %d\n", m.NJnt())
	fmt.Fprintf(d.out, "actuators: %d\n", m.NU())
	fmt.Fprintf(d.out, "sensors: %d\n", m.NSensor())
	fmt.Fprintln(d.out, "\njoint names:")
	for i := 0; i < m.NJnt(); i++ {
		if name := m.JointName(i); name != "" {
			fmt.Fprintf(d.out, "  %d: %s\n", i, name)
		}
	}
}

func (d *Driver) beginRecording(m *engine.Model, dim int) (*storage.Session, error) {
	st := d.store
	if st == nil {
		st = storage.New(d.cfg.Record.DataDir)
	}
	if err := st.Init(); err != nil {
		return nil, errors.Wrap(err, "preparing recording directory")
	}
	joints := make([]string, m.NJnt())
	for i := range joints {
		joints[i] = m.JointName(i)
	}
	actuators := make([]string, dim)
	for i := range actuators {
		actuators[i] = m.ActuatorName(i)
	}
	rec, err := st.Begin(storage.SessionMetadata{
		Model:      m.Name,
		ModelPath:  m.Path,
		Started:    d.clk.Now(),
		RateHz:     d.cfg.RateHz,
		Timestep:   m.Timestep,
		Integrator: m.Integrator,
		Controller: d.cfg.Controller,
		Signal: storage.SignalMetadata{
			Amplitude: d.cfg.Signal.Amplitude,
			Omega:     d.cfg.Signal.Omega,
			PhaseStep: d.cfg.Signal.PhaseStep,
		},
		TimeBase:  d.cfg.TimeBase,
		Joints:    joints,
		Actuators: actuators,
		Every:     d.cfg.Record.Every,
	}, m.NQ(), dim)
	if err != nil {
		return nil, errors.Wrap(err, "starting recording")
	}
	d.log.Info("recording", zap.String("session", rec.ID()), zap.String("dir", rec.Dir()))
	return rec, nil
}

// signalBound is the largest control magnitude ctrl produces: its
// amplitude when it has one, zero otherwise.
func signalBound(ctrl dynamo.Controller) float64 {
	if c, ok := ctrl.(dynamo.Configurable); ok {
		return math.Abs(c.GetParams()["amplitude"])
	}
	return 0
}

// applyParams sets each Config.Params entry on the controller or on the
// model dynamics, in key order.
func applyParams(ctrl dynamo.Controller, sys dynamo.System, params map[string]float64) error {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		var target any = sys
		name, ok := strings.CutPrefix(key, config.ParamController)
		if ok {
			target = ctrl
		} else {
			name = strings.TrimPrefix(key, config.ParamPhysics)
		}
		c, ok := target.(dynamo.Configurable)
		if !ok {
			return errors.Errorf("param %s: target has no parameters", key)
		}
		if err := c.SetParam(name, params[key]); err != nil {
			return errors.Wrapf(err, "param %s", key)
		}
	}
	return nil
}

// iterate is one loop iteration. It returns false once the viewer has
// closed or the step budget is spent.
func (s *session) iterate(context.Context) (bool, error) {
	cfg := s.d.cfg
	if !s.view.IsRunning() {
		return false, nil
	}
	if cfg.MaxSteps > 0 && s.steps >= cfg.MaxSteps {
		return false, nil
	}

	now := s.d.clk.Now()
	paused := false
	if s.inputs != nil {
		if s.inputs.TakeReset() {
			engine.Reset(s.model, s.data)
			s.d.log.Info("state reset", zap.Int("step", s.steps))
		}
		paused = s.inputs.Paused()
	}

	var u dynamo.Control
	st := s.signalTime(now)
	if s.dim > 0 {
		u = s.ctrl.Compute(s.data.State(), st)
		for i := 0; i < len(u) && i < len(s.data.Ctrl); i++ {
			s.data.Ctrl[i] = u[i]
		}
	}

	if !paused {
		if err := engine.Step(s.model, s.data); err != nil {
			return false, &dynamo.StepError{Step: s.steps + 1, Time: s.data.Time, Err: err}
		}
		for _, m := range s.metrics {
			m.Observe(s.data.State(), u, s.data.Time)
		}
	}

	work := s.d.clk.Now().Sub(now)
	err := s.view.Sync(viewer.Frame{
		Step:         s.steps + 1,
		Time:         s.data.Time,
		Qpos:         s.data.Qpos,
		Qvel:         s.data.Qvel,
		Ctrl:         s.data.Ctrl,
		StepDuration: work,
		Paused:       paused,
	})
	if err != nil {
		return false, &dynamo.StepError{Step: s.steps + 1, Time: s.data.Time, Err: errors.Wrap(err, "viewer sync")}
	}
	busy := s.d.clk.Now().Sub(now)
	s.pacing.ObserveWork(busy)
	if busy > s.pace.Period() {
		s.d.log.Debug("iteration overran period", zap.Int("step", s.steps+1), zap.Duration("work", busy))
	}

	s.steps++
	if s.rec != nil && !paused {
		smp := storage.Sample{Time: s.data.Time, SignalTime: st, Qpos: s.data.Qpos, Ctrl: s.data.Ctrl[:s.dim]}
		if err := s.rec.Record(s.steps, smp); err != nil {
			return false, &dynamo.StepError{Step: s.steps, Time: s.data.Time, Err: errors.Wrap(err, "recording")}
		}
	}
	if s.steps%cfg.ReportEvery == 0 {
		elapsed := s.d.clk.Now().Sub(s.start).Seconds()
		s.printf("step: %d, elapsed: %.1fs", s.steps, elapsed)
	}
	return true, nil
}

// signalTime is the time fed to the controller: seconds since the Unix
// epoch for the wall time base, seconds since the loop began otherwise.
func (s *session) signalTime(now time.Time) float64 {
	if s.d.cfg.TimeBase == config.TimeBaseSession {
		return now.Sub(s.start).Seconds()
	}
	return float64(now.UnixNano()) / 1e9
}

// printf writes one diagnostic line, through the viewer when it owns the
// terminal.
func (s *session) printf(format string, args ...any) {
	if p, ok := s.view.(viewer.Printer); ok && s.view.IsRunning() {
		p.Printf(format, args...)
		return
	}
	fmt.Fprintf(s.d.out, format+"\n", args...)
}

func (s *session) snapshot() map[string]float64 {
	out := make(map[string]float64, len(s.metrics)+1)
	for _, m := range s.metrics {
		out[m.Name()] = m.Value()
	}
	out[s.pacing.Name()] = s.pacing.Value()
	return out
}

func (s *session) closeRecording() error {
	if s.rec == nil {
		return nil
	}
	return s.rec.Close(s.steps, s.snapshot())
}

func (s *session) close() error {
	err := s.view.Close()
	err = multierr.Append(err, s.closeRecording())

	_, overruns, _ := s.pace.Stats()
	d := s.d
	d.stats = Stats{
		Steps:    s.steps,
		SimTime:  s.data.Time,
		Elapsed:  d.clk.Now().Sub(s.start),
		Overruns: overruns,
		MaxWork:  s.pacing.MaxWork(),
		Metrics:  s.snapshot(),
	}
	if s.rec != nil {
		d.stats.SessionID = s.rec.ID()
	}
	d.log.Info("session finished",
		zap.Int("steps", s.steps),
		zap.Float64("sim_time", s.data.Time),
		zap.Duration("elapsed", d.stats.Elapsed),
		zap.Int("overruns", overruns),
		zap.Duration("max_work", d.stats.MaxWork),
		zap.Any("metrics", d.stats.Metrics))
	return err
}
