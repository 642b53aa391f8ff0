package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultModelPath    = "./robot/scene_up.xml"
	DefaultRateHz       = 30.0
	DefaultMaxActuators = 9
	DefaultAmplitude    = 0.3
	DefaultOmega        = 0.5
	DefaultPhaseStep    = math.Pi / 4
	DefaultReportEvery  = 1000
	DefaultRecordEvery  = 10
	DefaultDataDir      = ".robotview"
)

// Loop rates outside this range give a period that does not fit a
// positive time.Duration.
const (
	MinRateHz = 1e-9
	MaxRateHz = 1e9
)

// Parameter key prefixes accepted in Config.Params.
const (
	ParamController = "controller."
	ParamPhysics    = "physics."
)

// Time bases for the control signal.
const (
	TimeBaseWall    = "wall"
	TimeBaseSession = "session"
)

type Config struct {
	ModelPath    string       `yaml:"model_path"`
	RateHz       float64      `yaml:"rate_hz"`
	MaxActuators int          `yaml:"max_actuators"`
	ReportEvery  int          `yaml:"report_every"`
	MaxSteps     int          `yaml:"max_steps"`
	TimeBase     string       `yaml:"time_base"`
	Controller   string       `yaml:"controller"`
	Signal       SignalConfig `yaml:"signal"`
	Integrator   string       `yaml:"integrator"`
	Timestep     float64      `yaml:"timestep"`
	Viewer       string       `yaml:"viewer"`
	Theme        string       `yaml:"theme"`
	Record       RecordConfig `yaml:"record"`
	Log          LogConfig    `yaml:"log"`

	// Params tunes the controller and the physics by name, keyed
	// "controller.<param>" or "physics.<param>".
	Params map[string]float64 `yaml:"params,omitempty"`
}

type SignalConfig struct {
	Amplitude float64 `yaml:"amplitude"`
	Omega     float64 `yaml:"omega"`
	PhaseStep float64 `yaml:"phase_step"`
}

type RecordConfig struct {
	Enabled bool   `yaml:"enabled"`
	Every   int    `yaml:"every"`
	DataDir string `yaml:"data_dir"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func DefaultConfig() *Config {
	return &Config{
		ModelPath:    DefaultModelPath,
		RateHz:       DefaultRateHz,
		MaxActuators: DefaultMaxActuators,
		ReportEvery:  DefaultReportEvery,
		TimeBase:     TimeBaseWall,
		Controller:   "sine",
		Signal: SignalConfig{
			Amplitude: DefaultAmplitude,
			Omega:     DefaultOmega,
			PhaseStep: DefaultPhaseStep,
		},
		Integrator: "rk4",
		Viewer:     "terminal",
		Theme:      "dark",
		Record: RecordConfig{
			Every:   DefaultRecordEvery,
			DataDir: DefaultDataDir,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file on top of the defaults; keys absent from the file
// keep their default value.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := Overlay(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Overlay applies the keys present in the YAML file at path onto cfg.
func Overlay(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports the first setting that would make the run meaningless.
func (c *Config) Validate() error {
	if c.ModelPath == "" {
		return fmt.Errorf("model_path must not be empty")
	}
	if !(c.RateHz >= MinRateHz && c.RateHz <= MaxRateHz) {
		return fmt.Errorf("rate_hz must be within [%g, %g], got %g", MinRateHz, MaxRateHz, c.RateHz)
	}
	if c.MaxActuators < 0 {
		return fmt.Errorf("max_actuators must be non-negative, got %d", c.MaxActuators)
	}
	if c.ReportEvery <= 0 {
		return fmt.Errorf("report_every must be positive, got %d", c.ReportEvery)
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative, got %d", c.MaxSteps)
	}
	if c.Timestep < 0 {
		return fmt.Errorf("timestep must be non-negative, got %f", c.Timestep)
	}
	switch c.TimeBase {
	case TimeBaseWall, TimeBaseSession:
	default:
		return fmt.Errorf("time_base must be %q or %q, got %q", TimeBaseWall, TimeBaseSession, c.TimeBase)
	}
	if c.Record.Enabled && c.Record.Every <= 0 {
		return fmt.Errorf("record.every must be positive, got %d", c.Record.Every)
	}
	for key := range c.Params {
		if !strings.HasPrefix(key, ParamController) && !strings.HasPrefix(key, ParamPhysics) {
			return fmt.Errorf("param %q must start with %q or %q", key, ParamController, ParamPhysics)
		}
	}
	return nil
}

// Period is the target duration of one loop iteration.
func (c *Config) Period() time.Duration {
	return time.Duration(float64(time.Second) / c.RateHz)
}
