package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/robotview/internal/config"
	"github.com/san-kum/robotview/internal/driver"
	"github.com/san-kum/robotview/internal/dynamo"
	"github.com/san-kum/robotview/internal/logging"
)

// settings holds the flags shared by every command. Flags override the
// config file, which overrides the preset, which overrides the defaults.
type settings struct {
	configFile string
	preset     string

	modelPath    string
	rateHz       float64
	maxActuators int
	amplitude    float64
	omega        float64
	phaseStep    float64
	reportEvery  int
	maxSteps     int
	timeBase     string
	controller   string
	integrator   string
	timestep     float64
	viewer       string
	theme        string
	record       bool
	recordEvery  int
	dataDir      string
	logLevel     string
	logFile      string
	params       []string
}

func main() {
	if err := newRootCmd(&settings{}).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(s *settings) *cobra.Command {
	root := &cobra.Command{
		Use:          "robotview",
		Short:        "drive a robot model with a sine signal and watch it move",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.runDriver(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&s.configFile, "config", "", "config file path (yaml)")
	f.StringVar(&s.preset, "preset", "", "start from a named preset")
	f.StringVarP(&s.modelPath, "model", "m", config.DefaultModelPath, "model description file")
	f.Float64Var(&s.rateHz, "rate", config.DefaultRateHz, "loop rate in Hz")
	f.IntVar(&s.maxActuators, "max-actuators", config.DefaultMaxActuators, "number of actuators to drive")
	f.Float64Var(&s.amplitude, "amplitude", config.DefaultAmplitude, "signal amplitude")
	f.Float64Var(&s.omega, "omega", config.DefaultOmega, "signal angular frequency (rad/s)")
	f.Float64Var(&s.phaseStep, "phase-step", config.DefaultPhaseStep, "phase offset between channels (rad)")
	f.IntVar(&s.reportEvery, "report-every", config.DefaultReportEvery, "print progress every n steps")
	f.IntVar(&s.maxSteps, "max-steps", 0, "stop after n steps (0 runs until the viewer closes)")
	f.StringVar(&s.timeBase, "time-base", config.TimeBaseWall, "signal clock: wall or session")
	f.StringVar(&s.controller, "controller", "sine", "controller: sine or none")
	f.StringVar(&s.integrator, "integrator", "rk4", "integrator")
	f.Float64Var(&s.timestep, "timestep", 0, "override the model timestep (s)")
	f.StringVar(&s.viewer, "viewer", "terminal", "viewer: terminal or headless")
	f.StringVar(&s.theme, "theme", "dark", "terminal viewer theme")
	f.BoolVar(&s.record, "record", false, "record the session to the data directory")
	f.IntVar(&s.recordEvery, "record-every", config.DefaultRecordEvery, "record every n steps")
	f.StringVar(&s.dataDir, "data", config.DefaultDataDir, "data directory")
	f.StringVar(&s.logLevel, "log-level", "info", "log level")
	f.StringVar(&s.logFile, "log-file", "", "write logs to file instead of stderr")
	f.StringArrayVar(&s.params, "param", nil, "set a tuning parameter, controller.<name>=<value> or physics.<name>=<value> (repeatable)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the simulation (same as no command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.runDriver(cmd)
		},
	}

	root.AddCommand(runCmd,
		newInfoCmd(s),
		newSignalCmd(s),
		newPresetsCmd(),
		newComponentsCmd(),
		newListCmd(s),
		newAnalyzeCmd(s),
		newConfigCmd(s),
	)
	return root
}

// resolve builds the effective configuration for cmd.
func (s *settings) resolve(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case s.preset != "":
		if cfg = config.GetPreset(s.preset); cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", s.preset, config.ListPresets())
		}
		if s.configFile != "" {
			if err := config.Overlay(cfg, s.configFile); err != nil {
				return nil, err
			}
		}
	case s.configFile != "":
		var err error
		if cfg, err = config.Load(s.configFile); err != nil {
			return nil, err
		}
	default:
		cfg = config.DefaultConfig()
	}

	changed := cmd.Flags().Changed
	if changed("model") {
		cfg.ModelPath = s.modelPath
	}
	if changed("rate") {
		cfg.RateHz = s.rateHz
	}
	if changed("max-actuators") {
		cfg.MaxActuators = s.maxActuators
	}
	if changed("amplitude") {
		cfg.Signal.Amplitude = s.amplitude
	}
	if changed("omega") {
		cfg.Signal.Omega = s.omega
	}
	if changed("phase-step") {
		cfg.Signal.PhaseStep = s.phaseStep
	}
	if changed("report-every") {
		cfg.ReportEvery = s.reportEvery
	}
	if changed("max-steps") {
		cfg.MaxSteps = s.maxSteps
	}
	if changed("time-base") {
		cfg.TimeBase = s.timeBase
	}
	if changed("controller") {
		cfg.Controller = s.controller
	}
	if changed("integrator") {
		cfg.Integrator = s.integrator
	}
	if changed("timestep") {
		cfg.Timestep = s.timestep
	}
	if changed("viewer") {
		cfg.Viewer = s.viewer
	}
	if changed("theme") {
		cfg.Theme = s.theme
	}
	if changed("record") {
		cfg.Record.Enabled = s.record
	}
	if changed("record-every") {
		cfg.Record.Every = s.recordEvery
	}
	if changed("data") {
		cfg.Record.DataDir = s.dataDir
	}
	if changed("log-level") {
		cfg.Log.Level = s.logLevel
	}
	if changed("log-file") {
		cfg.Log.File = s.logFile
	}
	if err := parseParams(cfg, s.params); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseParams adds name=value pairs to cfg.Params, replacing values from
// the config file.
func parseParams(cfg *config.Config, pairs []string) error {
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return fmt.Errorf("param %q: want name=value", pair)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("param %q: %w", pair, err)
		}
		if cfg.Params == nil {
			cfg.Params = make(map[string]float64)
		}
		cfg.Params[strings.TrimSpace(name)] = v
	}
	return nil
}

func (s *settings) runDriver(cmd *cobra.Command) error {
	cfg, err := s.resolve(cmd)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	d := driver.New(*cfg,
		driver.WithOutput(out),
		driver.WithViewerInput(cmd.InOrStdin()),
		driver.WithLogger(logger),
	)
	if err := d.Run(ctx); err != nil {
		report(out, cfg.ModelPath, err)
		logger.Debug("driver failed", zap.Error(err), zap.String("kind", errorKind(err)))
		return nil
	}

	st := d.Stats()
	fmt.Fprintf(out, "\nstopped after %d steps (%.1fs)\n", st.Steps, st.Elapsed.Seconds())
	if st.SessionID != "" {
		fmt.Fprintf(out, "recorded session: %s\n", st.SessionID)
	}
	return nil
}

// report is the single error boundary of the driver: it prints the error
// and a fixed checklist, and the process still exits normally.
func report(w io.Writer, modelPath string, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
	fmt.Fprintln(w, "please make sure:")
	fmt.Fprintln(w, "1. the simulation engine is available")
	fmt.Fprintf(w, "2. the model file exists: %s\n", modelPath)
	fmt.Fprintln(w, "3. the model file is well-formed")
}

func errorKind(err error) string {
	var le *dynamo.LoadError
	var se *dynamo.StepError
	switch {
	case errors.As(err, &le):
		return "load"
	case errors.As(err, &se):
		return "step"
	default:
		return "other"
	}
}

// commandContext is cmd's context, or Background when the command runs
// outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
