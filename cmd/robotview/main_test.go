package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/robotview/internal/dynamo"
)

const armXML = `<mujoco model="arm">
  <option timestep="0.01"/>
  <worldbody>
    <body name="base">
      <joint name="shoulder" damping="0.5"/>
      <body><joint name="elbow" damping="0.5"/></body>
    </body>
  </worldbody>
  <actuator>
    <motor name="m0" joint="shoulder"/>
    <motor name="m1" joint="elbow"/>
  </actuator>
</mujoco>`

func execute(t *testing.T, args ...string) string {
	t.Helper()
	root := newRootCmd(&settings{})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatalf("execute %v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolvePrecedence(t *testing.T) {
	cfgPath := writeFile(t, "cfg.yaml", "rate_hz: 10\nsignal:\n  amplitude: 0.9\n")

	s := &settings{}
	root := newRootCmd(s)
	if err := root.ParseFlags([]string{
		"--preset", "lively",
		"--config", cfgPath,
		"--amplitude", "0.2",
	}); err != nil {
		t.Fatal(err)
	}
	cfg, err := s.resolve(root)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RateHz != 10 {
		t.Errorf("rate from config file: got %v", cfg.RateHz)
	}
	if cfg.Signal.Amplitude != 0.2 {
		t.Errorf("amplitude flag should win: got %v", cfg.Signal.Amplitude)
	}
	if cfg.Signal.Omega != 1.5 {
		t.Errorf("omega from preset: got %v", cfg.Signal.Omega)
	}
}

func TestResolveDefaultsIgnoreUnsetFlags(t *testing.T) {
	s := &settings{}
	root := newRootCmd(s)
	if err := root.ParseFlags([]string{"--preset", "smooth"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := s.resolve(root)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RateHz != 60 {
		t.Errorf("unset rate flag overrode preset: got %v", cfg.RateHz)
	}
}

func TestResolveUnknownPreset(t *testing.T) {
	s := &settings{}
	root := newRootCmd(s)
	if err := root.ParseFlags([]string{"--preset", "frantic"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.resolve(root); err == nil {
		t.Error("expected error for unknown preset")
	}
}

func TestResolveConfigFileAndParams(t *testing.T) {
	cfgPath := writeFile(t, "cfg.yaml", "params:\n  physics.limit_damping: 3\n  controller.omega: 1\n")

	s := &settings{}
	root := newRootCmd(s)
	if err := root.ParseFlags([]string{
		"--config", cfgPath,
		"--param", "controller.omega=2.5",
		"--param", "physics.min_inertia=0.01",
	}); err != nil {
		t.Fatal(err)
	}
	cfg, err := s.resolve(root)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]float64{
		"controller.omega":      2.5,
		"physics.limit_damping": 3,
		"physics.min_inertia":   0.01,
	}
	if len(cfg.Params) != len(want) {
		t.Fatalf("params = %v", cfg.Params)
	}
	for k, v := range want {
		if cfg.Params[k] != v {
			t.Errorf("%s = %v, want %v", k, cfg.Params[k], v)
		}
	}
	if cfg.RateHz != 30 {
		t.Errorf("rate = %v, want default", cfg.RateHz)
	}
}

func TestResolveRejectsMalformedParam(t *testing.T) {
	for _, p := range []string{"omega", "controller.omega=fast", "=1"} {
		s := &settings{}
		root := newRootCmd(s)
		if err := root.ParseFlags([]string{"--param", p}); err != nil {
			t.Fatal(err)
		}
		if _, err := s.resolve(root); err == nil {
			t.Errorf("%q: expected error", p)
		}
	}
}

func TestReportChecklist(t *testing.T) {
	var out bytes.Buffer
	report(&out, "./robot/scene_up.xml", errors.New("boom"))
	want := "error: boom\n" +
		"please make sure:\n" +
		"1. the simulation engine is available\n" +
		"2. the model file exists: ./robot/scene_up.xml\n" +
		"3. the model file is well-formed\n"
	if out.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", out.String(), want)
	}
}

func TestMissingModelExitsNormally(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.xml")
	out := execute(t, "--model", missing, "--viewer", "headless", "--log-level", "error")

	if !strings.HasPrefix(out, "loading model: "+missing+"\n") {
		t.Errorf("expected loading line first, got:\n%s", out)
	}
	if !strings.Contains(out, "error: ") || !strings.Contains(out, "2. the model file exists: "+missing) {
		t.Errorf("missing checklist:\n%s", out)
	}
	if strings.Contains(out, "stopped after") {
		t.Errorf("failed run reported a summary:\n%s", out)
	}
}

func TestHeadlessRun(t *testing.T) {
	model := writeFile(t, "arm.xml", armXML)
	out := execute(t, "run", "--model", model, "--viewer", "headless",
		"--max-steps", "3", "--rate", "200", "--log-level", "error")

	for _, want := range []string{
		"model loaded: arm",
		"actuators: 2",
		"  0: shoulder",
		"stopped after 3 steps",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestErrorKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&dynamo.LoadError{Path: "m.xml", Err: os.ErrNotExist}, "load"},
		{fmt.Errorf("wrapped: %w", &dynamo.StepError{Step: 4, Err: errors.New("nan")}), "step"},
		{errors.New("plain"), "other"},
	}
	for _, c := range cases {
		if got := errorKind(c.err); got != c.want {
			t.Errorf("errorKind(%v) = %s, want %s", c.err, got, c.want)
		}
	}
}

func TestInfo(t *testing.T) {
	model := writeFile(t, "arm.xml", armXML)
	svg := filepath.Join(t.TempDir(), "pose.svg")
	out := execute(t, "info", "--model", model, "--svg", svg)

	for _, want := range []string{"model: arm", "shoulder", "elbow", "m1", "SENSOR", "physics parameters:", "physics.limit_damping = "} {
		if !strings.Contains(out, want) {
			t.Errorf("info output missing %q:\n%s", want, out)
		}
	}
	data, err := os.ReadFile(svg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<svg") {
		t.Error("pose file is not svg")
	}
}

func TestSignalPreview(t *testing.T) {
	svg := filepath.Join(t.TempDir(), "signal.svg")
	out := execute(t, "signal", "--channels", "2", "--svg", svg)
	if !strings.Contains(out, "sine signal: amplitude 0.300") {
		t.Errorf("unexpected header:\n%s", out)
	}
	if _, err := os.Stat(svg); err != nil {
		t.Error(err)
	}
}

func TestSignalRejectsNonPositiveRate(t *testing.T) {
	for _, args := range [][]string{
		{"signal", "--sample-rate", "-1"},
		{"signal", "--duration", "-3"},
	} {
		root := newRootCmd(&settings{})
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetErr(&out)
		root.SetArgs(args)
		err := root.Execute()
		if err == nil || !strings.Contains(err.Error(), "must be positive") {
			t.Errorf("%v: err = %v", args, err)
		}
	}
}

func TestInfoAppliesPhysicsParams(t *testing.T) {
	model := writeFile(t, "arm.xml", armXML)
	out := execute(t, "info", "--model", model, "--param", "physics.limit_damping=7.5")
	if !strings.Contains(out, "physics.limit_damping = 7.5\n") {
		t.Errorf("param not applied:\n%s", out)
	}
}

func TestSignalHonoursControllerParams(t *testing.T) {
	out := execute(t, "signal", "--param", "controller.omega=2")
	if !strings.Contains(out, "omega 2.000 rad/s") {
		t.Errorf("unexpected header:\n%s", out)
	}
}

func TestComponents(t *testing.T) {
	out := execute(t, "components")
	for _, want := range []string{
		"integrators: euler, implicit, rk4, verlet",
		"controllers: none, sine",
		"headless, terminal",
		"controller.amplitude",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("components missing %q:\n%s", want, out)
		}
	}
}

func TestPresetsAndEmptyList(t *testing.T) {
	out := execute(t, "presets")
	for _, name := range []string{"default", "gentle", "lively", "smooth", "33.333ms", "16.667ms"} {
		if !strings.Contains(out, name) {
			t.Errorf("presets missing %s", name)
		}
	}

	out = execute(t, "list", "--data", filepath.Join(t.TempDir(), "none"))
	if !strings.Contains(out, "no sessions found") {
		t.Errorf("unexpected list output:\n%s", out)
	}
}

func TestRecordThenAnalyze(t *testing.T) {
	model := writeFile(t, "arm.xml", armXML)
	data := t.TempDir()
	out := execute(t, "--model", model, "--viewer", "headless", "--max-steps", "64",
		"--rate", "1000", "--record", "--record-every", "1", "--data", data,
		"--time-base", "session", "--omega", "20", "--log-level", "error")

	i := strings.Index(out, "recorded session: ")
	if i < 0 {
		t.Fatalf("no session recorded:\n%s", out)
	}
	id := strings.TrimSpace(out[i+len("recorded session: "):])

	out = execute(t, "list", "--data", data)
	if !strings.Contains(out, id) {
		t.Errorf("list missing %s:\n%s", id, out)
	}

	out = execute(t, "analyze", id, "--data", data, "--json")
	if !strings.Contains(out, `"session": "`+id+`"`) || !strings.Contains(out, `"frequency"`) {
		t.Errorf("unexpected analysis:\n%s", out)
	}
}

func TestConfigWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "robotview.yaml")
	execute(t, "config", path, "--rate", "45")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "rate_hz: 45") {
		t.Errorf("config not written with flag value:\n%s", data)
	}
}
