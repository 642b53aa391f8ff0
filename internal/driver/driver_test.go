package driver_test

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"math"
	"path/filepath"
	"regexp"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/robotview/internal/analysis"
	"github.com/san-kum/robotview/internal/config"
	"github.com/san-kum/robotview/internal/driver"
	"github.com/san-kum/robotview/internal/dynamo"
	"github.com/san-kum/robotview/internal/engine"
	"github.com/san-kum/robotview/internal/storage"
	"github.com/san-kum/robotview/internal/viewer"
)

const period = 33333333 * time.Nanosecond

var _ = Describe("Driver", func() {
	var (
		dir string
		cfg config.Config
		clk *autoClock
		out *bytes.Buffer
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		cfg = *config.DefaultConfig()
		cfg.ModelPath = writeModel(dir, "arm.xml", armXML)
		cfg.Viewer = "headless"
		cfg.TimeBase = config.TimeBaseSession
		cfg.MaxSteps = 10
		clk = newAutoClock()
		out = &bytes.Buffer{}
	})

	run := func(opts ...driver.Option) (*driver.Driver, error) {
		opts = append([]driver.Option{driver.WithClock(clk), driver.WithOutput(out)}, opts...)
		d := driver.New(cfg, opts...)
		return d, d.Run(context.Background())
	}

	Describe("startup", func() {
		It("prints the model summary and named joints", func() {
			_, err := run()
			Expect(err).NotTo(HaveOccurred())

			text := out.String()
			Expect(text).To(HavePrefix("loading model: " + cfg.ModelPath + "\n"))
			Expect(text).To(ContainSubstring("model loaded: arm"))
			Expect(text).To(ContainSubstring("joints: 4\n"))
			Expect(text).To(ContainSubstring("actuators: 3\n"))
			Expect(text).To(ContainSubstring("sensors: 1\n"))
			Expect(text).To(ContainSubstring("  0: shoulder\n  1: elbow\n  3: wrist\n"))
			Expect(text).NotTo(ContainSubstring("  2:"))
		})

		It("reports a missing model as a LoadError", func() {
			cfg.ModelPath = filepath.Join(dir, "absent.xml")
			_, err := run()

			var le *dynamo.LoadError
			Expect(errors.As(err, &le)).To(BeTrue())
			Expect(le.Path).To(Equal(cfg.ModelPath))
			Expect(errors.Is(err, fs.ErrNotExist)).To(BeTrue())
			Expect(out.String()).To(Equal("loading model: " + cfg.ModelPath + "\n"))
		})

		It("reports a malformed model as a LoadError", func() {
			cfg.ModelPath = writeModel(dir, "bad.xml", "<mujoco><worldbody>")
			_, err := run()

			var le *dynamo.LoadError
			Expect(errors.As(err, &le)).To(BeTrue())
		})

		It("reports an unknown integrator as a LoadError", func() {
			cfg.Integrator = "rk45"
			_, err := run()

			var le *dynamo.LoadError
			Expect(errors.As(err, &le)).To(BeTrue())
		})

		It("rejects an invalid configuration before loading", func() {
			cfg.RateHz = 0
			_, err := run()

			Expect(err).To(MatchError(ContainSubstring("invalid configuration")))
			Expect(out.Len()).To(BeZero())
		})

		It("rejects an unknown controller", func() {
			cfg.Controller = "pid"
			_, err := run()
			Expect(err).To(MatchError(ContainSubstring("unknown controller")))
		})
	})

	Describe("control signal", func() {
		It("starts from the phase ladder at t=0", func() {
			v := &fakeViewer{}
			cfg.MaxSteps = 1
			_, err := run(driver.WithViewer(v.factory()))
			Expect(err).NotTo(HaveOccurred())

			Expect(v.frames).To(HaveLen(1))
			Expect(v.frames[0].Ctrl).To(HaveLen(3))
			Expect(v.frames[0].Ctrl[0]).To(BeNumerically("~", 0, 1e-12))
			Expect(v.frames[0].Ctrl[1]).To(BeNumerically("~", 0.2121, 1e-4))
			Expect(v.frames[0].Ctrl[2]).To(BeNumerically("~", 0.3, 1e-12))
		})

		It("follows the wall clock by default", func() {
			v := &fakeViewer{}
			cfg.TimeBase = config.TimeBaseWall
			cfg.MaxSteps = 2
			clk.Set(time.Unix(100, 0))
			_, err := run(driver.WithViewer(v.factory()))
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < 3; i++ {
				want := 0.3 * math.Sin(0.5*100+float64(i)*math.Pi/4)
				Expect(v.frames[0].Ctrl[i]).To(BeNumerically("~", want, 1e-9))
			}
			t1 := 100 + period.Seconds()
			Expect(v.frames[1].Ctrl[0]).To(BeNumerically("~", 0.3*math.Sin(0.5*t1), 1e-9))
		})

		It("applies controller parameters over the signal settings", func() {
			v := &fakeViewer{}
			cfg.MaxSteps = 1
			cfg.Params = map[string]float64{"controller.amplitude": 0.6}
			_, err := run(driver.WithViewer(v.factory()))
			Expect(err).NotTo(HaveOccurred())
			Expect(v.frames[0].Ctrl[2]).To(BeNumerically("~", 0.6, 1e-12))
		})

		It("rejects a parameter its target does not expose", func() {
			cfg.Params = map[string]float64{"physics.mass": 1}
			_, err := run()
			Expect(err).To(MatchError(ContainSubstring("invalid configuration")))
			Expect(errors.Is(err, dynamo.ErrUnknownParam)).To(BeTrue())
		})

		It("rejects controller parameters for the zero controller", func() {
			cfg.Controller = "none"
			cfg.Params = map[string]float64{"controller.omega": 2}
			_, err := run()
			Expect(err).To(MatchError(ContainSubstring("has no parameters")))
		})

		It("drives at most MaxActuators channels", func() {
			v := &fakeViewer{}
			cfg.ModelPath = writeModel(dir, "chain.xml", chainXML(11))
			cfg.MaxSteps = 5
			_, err := run(driver.WithViewer(v.factory()))
			Expect(err).NotTo(HaveOccurred())

			for _, f := range v.frames {
				Expect(f.Ctrl).To(HaveLen(11))
				Expect(f.Ctrl[9]).To(BeZero())
				Expect(f.Ctrl[10]).To(BeZero())
			}
			Expect(v.frames[1].Ctrl[8]).NotTo(BeZero())
		})

		It("holds every channel at zero with the none controller", func() {
			v := &fakeViewer{}
			cfg.Controller = "none"
			_, err := run(driver.WithViewer(v.factory()))
			Expect(err).NotTo(HaveOccurred())
			for _, f := range v.frames {
				Expect(f.Ctrl).To(Equal([]float64{0, 0, 0}))
			}
		})

		It("still advances a model without actuators", func() {
			cfg.ModelPath = writeModel(dir, "passive.xml", passiveXML)
			cfg.MaxSteps = 5
			d, err := run()
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Stats().Steps).To(Equal(5))
			Expect(d.Stats().SimTime).To(BeNumerically("~", 0.025, 1e-12))
		})
	})

	Describe("loop", func() {
		It("steps the engine once per iteration", func() {
			v := &fakeViewer{}
			_, err := run(driver.WithViewer(v.factory()))
			Expect(err).NotTo(HaveOccurred())

			Expect(v.frames).To(HaveLen(10))
			for i, f := range v.frames {
				Expect(f.Step).To(Equal(i + 1))
				Expect(f.Time).To(BeNumerically("~", float64(i+1)*0.01, 1e-12))
			}
		})

		It("paces iterations to the target rate", func() {
			d, err := run()
			Expect(err).NotTo(HaveOccurred())

			Expect(clk.sleeps).To(HaveLen(10))
			for _, s := range clk.sleeps {
				Expect(s).To(Equal(period))
			}
			Expect(clk.Now().Sub(time.Unix(0, 0))).To(Equal(10 * period))
			Expect(d.Stats().Overruns).To(BeZero())
			Expect(d.Stats().Elapsed).To(Equal(10 * period))
		})

		It("does not sleep after an overrun", func() {
			v := &fakeViewer{}
			slow := func(*fakeViewer) { clk.Add(50 * time.Millisecond) }
			cfg.MaxSteps = 3
			d, err := run(driver.WithViewer((&slowViewer{fakeViewer: v, onSync: slow}).factory()))
			Expect(err).NotTo(HaveOccurred())

			Expect(clk.sleeps).To(BeEmpty())
			Expect(d.Stats().Overruns).To(Equal(3))
			Expect(d.Stats().MaxWork).To(Equal(50 * time.Millisecond))
			Expect(d.Stats().Metrics["pacing_utilization"]).To(BeNumerically(">", 1))
		})

		It("reports exactly at multiples of ReportEvery", func() {
			cfg.ReportEvery = 5
			cfg.MaxSteps = 12
			_, err := run()
			Expect(err).NotTo(HaveOccurred())

			re := regexp.MustCompile(`step: (\d+), elapsed: \d+\.\ds`)
			matches := re.FindAllStringSubmatch(out.String(), -1)
			Expect(matches).To(HaveLen(2))
			Expect(matches[0][1]).To(Equal("5"))
			Expect(matches[1][1]).To(Equal("10"))
		})

		It("reports every 1000 steps by default", func() {
			cfg.MaxSteps = 2000
			_, err := run()
			Expect(err).NotTo(HaveOccurred())

			Expect(out.String()).To(ContainSubstring("step: 1000, elapsed: 33.3s\n"))
			Expect(out.String()).To(ContainSubstring("step: 2000, elapsed: 66.6s\n"))
			Expect(out.String()).NotTo(ContainSubstring("step: 999"))
		})

		It("stops when the viewer closes", func() {
			v := &fakeViewer{stopAfter: 4}
			cfg.MaxSteps = 0
			d, err := run(driver.WithViewer(v.factory()))
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Stats().Steps).To(Equal(4))
			Expect(v.closed).To(BeTrue())
		})

		It("stops cleanly on cancellation", func() {
			ctx, cancel := context.WithCancel(context.Background())
			v := &fakeViewer{}
			cfg.MaxSteps = 0
			sv := &slowViewer{fakeViewer: v, onSync: func(f *fakeViewer) {
				if len(f.frames) == 3 {
					cancel()
				}
			}}
			d := driver.New(cfg, driver.WithClock(clk), driver.WithOutput(out), driver.WithViewer(sv.factory()))
			Expect(d.Run(ctx)).To(Succeed())
			Expect(d.Stats().Steps).To(Equal(3))
			Expect(v.closed).To(BeTrue())
		})

		It("routes diagnostics through a printing viewer", func() {
			v := &fakeViewer{}
			cfg.ReportEvery = 5
			_, err := run(driver.WithViewer(v.factory()))
			Expect(err).NotTo(HaveOccurred())
			Expect(v.printed).To(ContainElement(HavePrefix("controls:")))
			Expect(v.printed).To(ContainElement(MatchRegexp(`^step: 10, elapsed: \d+\.\ds$`)))
			Expect(out.String()).NotTo(ContainSubstring("step: 10"))
		})
	})

	Describe("viewer controls", func() {
		It("syncs but does not step while paused", func() {
			v := &fakeViewer{paused: true}
			cfg.MaxSteps = 4
			_, err := run(driver.WithViewer(v.factory()))
			Expect(err).NotTo(HaveOccurred())

			Expect(v.frames).To(HaveLen(4))
			for _, f := range v.frames {
				Expect(f.Paused).To(BeTrue())
				Expect(f.Time).To(BeZero())
			}
		})

		It("resets the state on request", func() {
			v := &fakeViewer{resetAt: 3}
			cfg.MaxSteps = 5
			_, err := run(driver.WithViewer(v.factory()))
			Expect(err).NotTo(HaveOccurred())

			Expect(v.frames[2].Time).To(BeNumerically("~", 0.03, 1e-12))
			Expect(v.frames[3].Time).To(BeNumerically("~", 0.01, 1e-12))
			Expect(v.frames[4].Time).To(BeNumerically("~", 0.02, 1e-12))
		})
	})

	Describe("failures", func() {
		It("wraps a sync failure in a StepError", func() {
			boom := errors.New("display lost")
			v := &fakeViewer{syncErr: boom, errAt: 3}
			_, err := run(driver.WithViewer(v.factory()))

			var se *dynamo.StepError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Step).To(Equal(3))
			Expect(errors.Is(err, boom)).To(BeTrue())
			Expect(v.closed).To(BeTrue())
		})

		It("joins viewer close errors into the result", func() {
			closeErr := errors.New("terminal restore failed")
			v := &fakeViewer{closeErr: closeErr}
			d, err := run(driver.WithViewer(v.factory()))

			Expect(errors.Is(err, closeErr)).To(BeTrue())
			Expect(d.Stats().Steps).To(Equal(10))
		})
	})

	Describe("recording", func() {
		It("writes a session when enabled", func() {
			st := storage.New(filepath.Join(dir, "sessions"))
			cfg.Record.Enabled = true
			cfg.Record.Every = 2
			cfg.MaxSteps = 6
			d, err := run(driver.WithStore(st))
			Expect(err).NotTo(HaveOccurred())

			id := d.Stats().SessionID
			Expect(id).NotTo(BeEmpty())

			meta, err := st.Load(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(meta.Model).To(Equal("arm"))
			Expect(meta.Steps).To(Equal(6))
			Expect(meta.Samples).To(Equal(3))
			Expect(meta.Actuators).To(Equal([]string{"m0", "m1", "m2"}))
			Expect(meta.Metrics).To(HaveKey("peak_control"))

			tr, err := st.LoadTrace(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(tr.Times).To(HaveLen(3))
			Expect(tr.NumChannels()).To(Equal(3))
			Expect(tr.Times[0]).To(BeNumerically("~", 0.02, 1e-9))
		})

		It("records the signal time so analysis recovers the configured omega", func() {
			st := storage.New(filepath.Join(dir, "sessions"))
			cfg.TimeBase = config.TimeBaseWall
			cfg.Signal.Omega = 6 * math.Pi
			cfg.Record.Enabled = true
			cfg.Record.Every = 1
			cfg.MaxSteps = 250
			d, err := run(driver.WithStore(st))
			Expect(err).NotTo(HaveOccurred())

			tr, err := st.LoadTrace(d.Stats().SessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(tr.SignalTimes).To(HaveLen(250))
			Expect(tr.SignalRate()).To(BeNumerically("~", 30, 1e-3))

			sums := analysis.Summarize([][]float64{tr.Channel(0), tr.Channel(1)}, tr.SignalRate())
			Expect(sums[0].Omega).To(BeNumerically("~", cfg.Signal.Omega, 0.02*cfg.Signal.Omega))
			Expect(sums[1].Omega).To(BeNumerically("~", cfg.Signal.Omega, 0.02*cfg.Signal.Omega))
		})

		It("skips paused iterations", func() {
			st := storage.New(filepath.Join(dir, "sessions"))
			v := &fakeViewer{paused: true}
			cfg.Record.Enabled = true
			cfg.Record.Every = 1
			cfg.MaxSteps = 4
			d, err := run(driver.WithStore(st), driver.WithViewer(v.factory()))
			Expect(err).NotTo(HaveOccurred())

			meta, err := st.Load(d.Stats().SessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(meta.Steps).To(Equal(4))
			Expect(meta.Samples).To(BeZero())
		})

		It("records nothing by default", func() {
			d, err := run()
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Stats().SessionID).To(BeEmpty())
		})
	})

	Describe("metrics", func() {
		It("keeps the sine within its amplitude", func() {
			cfg.MaxSteps = 50
			d, err := run()
			Expect(err).NotTo(HaveOccurred())

			m := d.Stats().Metrics
			Expect(m["control_bounded"]).To(Equal(1.0))
			Expect(m["peak_control"]).To(BeNumerically("<=", 0.3))
			Expect(m["control_effort"]).To(BeNumerically(">", 0))
		})
	})
})

// slowViewer runs a hook after each sync.
type slowViewer struct {
	*fakeViewer
	onSync func(*fakeViewer)
}

func (s *slowViewer) Sync(f viewer.Frame) error {
	err := s.fakeViewer.Sync(f)
	s.onSync(s.fakeViewer)
	return err
}

func (s *slowViewer) factory() viewer.Factory {
	return func(*engine.Model, viewer.Options) (viewer.Viewer, error) {
		return s, nil
	}
}
