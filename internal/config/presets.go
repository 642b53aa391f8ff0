package config

import (
	"math"
	"sort"
)

var Presets = map[string]*Config{
	"default": DefaultConfig(),
	"gentle": withSignal(DefaultConfig(), SignalConfig{
		Amplitude: 0.1, Omega: 0.25, PhaseStep: math.Pi / 4,
	}),
	"lively": withSignal(DefaultConfig(), SignalConfig{
		Amplitude: 0.6, Omega: 1.5, PhaseStep: math.Pi / 3,
	}),
	"smooth": func() *Config {
		cfg := DefaultConfig()
		cfg.RateHz = 60
		cfg.Integrator = "implicit"
		cfg.TimeBase = TimeBaseSession
		return cfg
	}(),
}

func withSignal(cfg *Config, s SignalConfig) *Config {
	cfg.Signal = s
	return cfg
}

// GetPreset returns a copy of the named preset, or nil if it does not exist.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	c := *cfg
	return &c
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
