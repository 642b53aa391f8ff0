package driver_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/san-kum/robotview/internal/engine"
	"github.com/san-kum/robotview/internal/viewer"
)

// autoClock advances the mock clock instead of blocking in Sleep.
type autoClock struct {
	*clock.Mock
	sleeps []time.Duration
}

func newAutoClock() *autoClock {
	return &autoClock{Mock: clock.NewMock()}
}

func (c *autoClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.Mock.Add(d)
}

const armXML = `<mujoco model="arm">
  <option timestep="0.01"/>
  <worldbody>
    <body name="base">
      <joint name="shoulder"/>
      <body>
        <joint name="elbow"/>
        <body>
          <joint/>
          <body><joint name="wrist"/></body>
        </body>
      </body>
    </body>
  </worldbody>
  <actuator>
    <motor name="m0" joint="shoulder"/>
    <motor name="m1" joint="elbow"/>
    <motor name="m2" joint="wrist"/>
  </actuator>
  <sensor>
    <jointpos joint="wrist"/>
  </sensor>
</mujoco>`

const passiveXML = `<mujoco model="passive">
  <option timestep="0.005"/>
  <worldbody>
    <body><joint name="hinge" ref="0.1" stiffness="1"/></body>
  </worldbody>
</mujoco>`

// chainXML builds a serial chain of n motorized hinge joints.
func chainXML(n int) string {
	var b strings.Builder
	b.WriteString(`<mujoco model="chain"><option timestep="0.002"/><worldbody>`)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<body><joint name="j%d"/>`, i)
	}
	b.WriteString(strings.Repeat("</body>", n))
	b.WriteString(`</worldbody><actuator>`)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<motor name="a%d" joint="j%d"/>`, i, i)
	}
	b.WriteString(`</actuator></mujoco>`)
	return b.String()
}

func writeModel(dir, name, content string) string {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		panic(err)
	}
	return path
}

// fakeViewer records frames and scripts user input by frame count.
type fakeViewer struct {
	frames    []viewer.Frame
	stopAfter int
	paused    bool
	resetAt   int
	syncErr   error
	errAt     int
	closeErr  error
	closed    bool
	printed   []string
}

func (v *fakeViewer) IsRunning() bool {
	return !v.closed && (v.stopAfter == 0 || len(v.frames) < v.stopAfter)
}

func (v *fakeViewer) Sync(f viewer.Frame) error {
	v.frames = append(v.frames, f.Clone())
	if v.syncErr != nil && len(v.frames) == v.errAt {
		return v.syncErr
	}
	return nil
}

func (v *fakeViewer) Close() error {
	v.closed = true
	return v.closeErr
}

func (v *fakeViewer) Paused() bool { return v.paused }

func (v *fakeViewer) TakeReset() bool {
	if v.resetAt > 0 && len(v.frames) == v.resetAt {
		v.resetAt = 0
		return true
	}
	return false
}

func (v *fakeViewer) Printf(format string, args ...any) {
	v.printed = append(v.printed, fmt.Sprintf(format, args...))
}

func (v *fakeViewer) factory() viewer.Factory {
	return func(*engine.Model, viewer.Options) (viewer.Viewer, error) {
		return v, nil
	}
}
