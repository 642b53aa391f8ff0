package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/robotview/internal/analysis"
	"github.com/san-kum/robotview/internal/config"
	"github.com/san-kum/robotview/internal/control"
	"github.com/san-kum/robotview/internal/dynamo"
	"github.com/san-kum/robotview/internal/engine"
	"github.com/san-kum/robotview/internal/export"
	"github.com/san-kum/robotview/internal/registry"
	"github.com/san-kum/robotview/internal/storage"
	"github.com/san-kum/robotview/internal/viz"
)

func newInfoCmd(s *settings) *cobra.Command {
	var svgPath string
	cmd := &cobra.Command{
		Use:   "info",
		Short: "print model statistics without starting the viewer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := s.resolve(cmd)
			if err != nil {
				return err
			}
			m, err := engine.Load(cfg.ModelPath, engine.WithTimestep(cfg.Timestep))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "model: %s (%s)\n", m.Name, m.Path)
			fmt.Fprintf(out, "timestep: %gs  nq: %d  nv: %d\n\n", m.Timestep, m.NQ(), m.NV())

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "JOINT\tNAME\tTYPE\tRANGE\tDAMPING\tSTIFFNESS")
			for i, j := range m.Joints {
				rng := "-"
				if j.Limited {
					rng = fmt.Sprintf("[%.3f, %.3f]", j.Range[0], j.Range[1])
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%g\t%g\n", i, orDash(j.Name), j.Type, rng, j.Damping, j.Stiffness)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "ACTUATOR\tNAME\tKIND\tJOINT\tGEAR\tCTRLRANGE\tDRIVEN")
			driven := control.Channels(m.NU(), cfg.MaxActuators)
			for i, a := range m.Actuators {
				ctrl := "-"
				if a.CtrlLimited {
					ctrl = fmt.Sprintf("[%.3f, %.3f]", a.CtrlRange[0], a.CtrlRange[1])
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%g\t%s\t%v\n",
					i, orDash(a.Name), a.Kind, orDash(m.JointName(a.Joint)), a.Gear, ctrl, i < driven)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "SENSOR\tNAME\tKIND")
			for i, sn := range m.Sensors {
				fmt.Fprintf(w, "%d\t%s\t%s\n", i, orDash(sn.Name), sn.Kind)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if err := printPhysics(out, m, cfg.Params); err != nil {
				return err
			}

			if svgPath != "" {
				d, err := engine.NewData(m)
				if err != nil {
					return err
				}
				var angles []float64
				for _, j := range m.Joints {
					if j.Type == engine.JointHinge {
						angles = append(angles, d.Qpos[j.QposAdr])
					}
				}
				c := viz.NewCanvas(40, 20)
				viz.DrawChain(c, angles)
				if err := os.WriteFile(svgPath, []byte(export.CanvasToSVG(c, 4)), 0644); err != nil {
					return err
				}
				fmt.Fprintf(out, "\nreference pose written to %s\n", svgPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&svgPath, "svg", "", "write the reference pose of the joint chain as svg")
	return cmd
}

// printPhysics lists the tuning parameters of the model dynamics after
// applying the physics.* entries of params.
func printPhysics(out io.Writer, m *engine.Model, params map[string]float64) error {
	c, ok := m.System().(dynamo.Configurable)
	if !ok {
		return nil
	}
	for key, v := range params {
		if name, ok := strings.CutPrefix(key, config.ParamPhysics); ok {
			if err := c.SetParam(name, v); err != nil {
				return fmt.Errorf("param %s: %w", key, err)
			}
		}
	}
	vals := c.GetParams()
	names := make([]string, 0, len(vals))
	for name := range vals {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(out, "\nphysics parameters:")
	for _, name := range names {
		fmt.Fprintf(out, "  %s%s = %g\n", config.ParamPhysics, name, vals[name])
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newSignalCmd(s *settings) *cobra.Command {
	var (
		duration float64
		rate     float64
		channels int
		svgPath  string
		pngPath  string
	)
	cmd := &cobra.Command{
		Use:   "signal",
		Short: "preview the control waveform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := s.resolve(cmd)
			if err != nil {
				return err
			}
			if duration <= 0 || rate <= 0 {
				return fmt.Errorf("duration and sample rate must be positive, got %g s at %g Hz", duration, rate)
			}
			n := control.Channels(channels, cfg.MaxActuators)
			ctrl, err := registry.NewRegistry().GetController(cfg.Controller, n, cfg.Signal)
			if err != nil {
				return err
			}
			if c, ok := ctrl.(dynamo.Configurable); ok {
				for key, v := range cfg.Params {
					if name, ok := strings.CutPrefix(key, config.ParamController); ok {
						if err := c.SetParam(name, v); err != nil {
							return fmt.Errorf("param %s: %w", key, err)
						}
					}
				}
			}
			w := export.SampleController(ctrl, duration, rate, nil)

			out := cmd.OutOrStdout()
			if c, ok := ctrl.(dynamo.Configurable); ok {
				p := c.GetParams()
				fmt.Fprintf(out, "%s signal: amplitude %.3f, omega %.3f rad/s, phase step %.3f rad, %d channels\n\n",
					cfg.Controller, p["amplitude"], p["omega"], p["phase"], n)
			} else {
				fmt.Fprintf(out, "%s signal: %d channels\n\n", cfg.Controller, n)
			}
			if chart := w.ASCII(70, 12, true); chart != "" {
				fmt.Fprintln(out, chart)
			}

			if svgPath != "" {
				if err := os.WriteFile(svgPath, []byte(export.WaveformSVG(w, 800, 300)), 0644); err != nil {
					return err
				}
				fmt.Fprintf(out, "svg written to %s\n", svgPath)
			}
			if pngPath != "" {
				if err := export.SaveImage(w, cfg.Controller+" signal", pngPath); err != nil {
					return err
				}
				fmt.Fprintf(out, "image written to %s\n", pngPath)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&duration, "duration", 4*math.Pi/config.DefaultOmega, "seconds to sample")
	cmd.Flags().Float64Var(&rate, "sample-rate", 10, "samples per second")
	cmd.Flags().IntVar(&channels, "channels", 3, "number of channels to show")
	cmd.Flags().StringVar(&svgPath, "svg", "", "write the waveform as svg")
	cmd.Flags().StringVar(&pngPath, "png", "", "write the waveform as png")
	return cmd
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "list configuration presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tRATE\tPERIOD\tAMPLITUDE\tOMEGA\tPHASE\tINTEG\tTIME BASE")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%gHz\t%v\t%g\t%g\t%.4f\t%s\t%s\n",
					name, p.RateHz, p.Period().Round(time.Microsecond), p.Signal.Amplitude, p.Signal.Omega,
					p.Signal.PhaseStep, p.Integrator, p.TimeBase)
			}
			return w.Flush()
		},
	}
}

func newComponentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "components",
		Short: "list available integrators, controllers and viewers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := registry.NewRegistry()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "integrators: %s\n", strings.Join(reg.ListIntegrators(), ", "))
			fmt.Fprintf(out, "controllers: %s\n", strings.Join(reg.ListControllers(), ", "))
			fmt.Fprintf(out, "viewers:     %s\n", strings.Join(reg.ListViewers(), ", "))

			sine := control.NewSine(1, control.DefaultSineParams())
			names := make([]string, 0)
			for name := range sine.GetParams() {
				names = append(names, config.ParamController+name)
			}
			sort.Strings(names)
			fmt.Fprintf(out, "sine params: %s\n", strings.Join(names, ", "))
			return nil
		},
	}
}

func newListCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list recorded sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := s.resolve(cmd)
			if err != nil {
				return err
			}
			sessions, err := storage.New(cfg.Record.DataDir).List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "no sessions found")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tMODEL\tSTARTED\tSTEPS\tSAMPLES\tRATE\tCTRL")
			for _, m := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%gHz\t%s\n",
					m.ID, m.Model, m.Started.Format("2006-01-02 15:04:05"),
					m.Steps, m.Samples, m.RateHz, m.Controller)
			}
			return w.Flush()
		},
	}
}

func newAnalyzeCmd(s *settings) *cobra.Command {
	var (
		asJSON  bool
		pngPath string
	)
	cmd := &cobra.Command{
		Use:   "analyze <session>",
		Short: "frequency analysis of a recorded session's controls",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := s.resolve(cmd)
			if err != nil {
				return err
			}
			st := storage.New(cfg.Record.DataDir)
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			tr, err := st.LoadTrace(args[0])
			if err != nil {
				return err
			}
			if tr.NumChannels() == 0 || len(tr.Times) < 4 {
				return fmt.Errorf("session %s has too few control samples to analyze", meta.ID)
			}

			rate := tr.SignalRate()
			channels := make([][]float64, tr.NumChannels())
			for i := range channels {
				channels[i] = tr.Channel(i)
			}
			sums := analysis.Summarize(channels, rate)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Session  string                    `json:"session"`
					Rate     float64                   `json:"sample_rate"`
					Channels []analysis.ChannelSummary `json:"channels"`
				}{meta.ID, rate, sums})
			}

			fmt.Fprintf(out, "frequency analysis: %s\n", meta.ID)
			fmt.Fprintf(out, "model: %s, %d samples at %.2f Hz (%s time base)\n\n", meta.Model, len(tr.Times), rate, orDash(meta.TimeBase))

			ps := analysis.PowerSpectrum(channels[0])
			if len(ps) > 8 {
				fmt.Fprintln(out, asciigraph.Plot(ps[1:len(ps)/2],
					asciigraph.Height(10),
					asciigraph.Width(70),
					asciigraph.Caption("power spectrum, channel 0")))
				fmt.Fprintln(out)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CH\tNAME\tMIN\tMAX\tAMPL\tFREQ (Hz)\tOMEGA\tPHASE")
			for _, c := range sums {
				name := ""
				if c.Index < len(meta.Actuators) {
					name = meta.Actuators[c.Index]
				}
				fmt.Fprintf(w, "%d\t%s\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\n",
					c.Index, orDash(name), c.Min, c.Max, c.Amplitude, c.Frequency, c.Omega, c.Phase)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if pngPath != "" {
				if err := export.SaveImage(export.FromTrace(tr, meta.Actuators), meta.ID, pngPath); err != nil {
					return err
				}
				fmt.Fprintf(out, "image written to %s\n", pngPath)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the analysis as json")
	cmd.Flags().StringVar(&pngPath, "png", "", "plot the recorded controls to an image")
	return cmd
}

func newConfigCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "config <path>",
		Short: "write the effective configuration to a yaml file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := s.resolve(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(args[0], cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration written to %s\n", args[0])
			return nil
		},
	}
}
