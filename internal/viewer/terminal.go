package viewer

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"go.uber.org/zap"

	"github.com/san-kum/robotview/internal/engine"
	"github.com/san-kum/robotview/internal/viz"
)

const (
	canvasWidth  = 28
	canvasHeight = 10
	chartWidth   = 60
	chartHeight  = 10
	stepHistory  = 120
)

// Terminal is an interactive viewer running a bubbletea program on its own
// goroutine. The program is inline rather than full screen, so Printf
// output scrolls above it.
type Terminal struct {
	prog *tea.Program
	out  io.Writer
	log  *zap.Logger

	running atomic.Bool
	paused  atomic.Bool
	reset   atomic.Bool

	done      chan struct{}
	runErr    error
	closeOnce sync.Once
}

// NewTerminal starts the program and returns immediately.
func NewTerminal(m *engine.Model, opts Options) (*Terminal, error) {
	t := &Terminal{
		out:  opts.Output,
		log:  opts.Logger,
		done: make(chan struct{}),
	}
	if t.out == nil {
		t.out = os.Stdout
	}
	if t.log == nil {
		t.log = zap.NewNop()
	}

	var popts []tea.ProgramOption
	if opts.Input != nil {
		popts = append(popts, tea.WithInput(opts.Input))
	}
	popts = append(popts, tea.WithOutput(t.out))
	t.prog = tea.NewProgram(newTermModel(t, m, opts), popts...)

	t.running.Store(true)
	go func() {
		_, err := t.prog.Run()
		t.runErr = err
		t.running.Store(false)
		close(t.done)
	}()
	return t, nil
}

// TerminalFactory adapts NewTerminal to Factory.
func TerminalFactory(m *engine.Model, opts Options) (Viewer, error) {
	return NewTerminal(m, opts)
}

func (t *Terminal) IsRunning() bool { return t.running.Load() }
func (t *Terminal) Paused() bool    { return t.paused.Load() }
func (t *Terminal) TakeReset() bool { return t.reset.Swap(false) }

func (t *Terminal) Sync(f Frame) error {
	if !t.running.Load() {
		return nil
	}
	t.prog.Send(frameMsg(f.Clone()))
	return nil
}

// Printf prints a line above the view. Lines the program does not take
// before it exits are written to the output directly.
func (t *Terminal) Printf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if t.running.Load() {
		msg := printMsg{line: line, ack: make(chan struct{})}
		t.prog.Send(msg)
		select {
		case <-msg.ack:
			return
		case <-t.done:
		}
	}
	fmt.Fprintln(t.out, line)
}

// Close stops the program and waits for it to restore the terminal.
func (t *Terminal) Close() error {
	t.closeOnce.Do(func() {
		t.prog.Quit()
		<-t.done
		if t.runErr != nil {
			t.log.Debug("terminal viewer exited", zap.Error(t.runErr))
		}
	})
	return t.runErr
}

type frameMsg Frame

// printMsg carries one Printf line into the program; ack is closed once
// the program has queued it.
type printMsg struct {
	line string
	ack  chan struct{}
}

type termModel struct {
	v       *Terminal
	name    string
	hinges  []int
	signals []string

	theme  viz.Theme
	styles viz.Styles
	canvas *viz.Canvas
	chart  *streamlinechart.Model
	stepMs []float64

	last     Frame
	width    int
	quitting bool
}

func newTermModel(v *Terminal, m *engine.Model, opts Options) termModel {
	bound := opts.SignalBound
	if bound <= 0 {
		bound = 1
	}
	bound = math.Max(bound*1.2, 0.1)

	th := viz.GetTheme(opts.Theme)
	chart := streamlinechart.New(chartWidth, chartHeight,
		streamlinechart.WithYRange(-bound, bound),
	)

	tm := termModel{
		v:      v,
		name:   m.Name,
		theme:  th,
		styles: viz.NewStyles(th),
		canvas: viz.NewCanvas(canvasWidth, canvasHeight),
		chart:  &chart,
	}
	for _, j := range m.Joints {
		if j.Type == engine.JointHinge {
			tm.hinges = append(tm.hinges, j.QposAdr)
		}
	}
	for i := range m.NU() {
		name := m.ActuatorName(i)
		if name == "" {
			name = fmt.Sprintf("u%d", i)
		}
		tm.signals = append(tm.signals, name)
		style := lipgloss.NewStyle().Foreground(th.Channel(i))
		tm.chart.SetDataSetStyles(name, runes.ThinLineStyle, style)
	}
	viz.DrawChain(tm.canvas, nil)
	return tm
}

func (m termModel) Init() tea.Cmd { return nil }

func (m termModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			m.v.running.Store(false)
			return m, tea.Quit
		case " ":
			m.v.paused.Store(!m.v.paused.Load())
		case "ctrl+r":
			m.v.reset.Store(true)
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if w := msg.Width - 4; w >= 20 && w < chartWidth {
			m.chart.Resize(w, chartHeight)
		}
	case frameMsg:
		m.observe(Frame(msg))
	case printMsg:
		close(msg.ack)
		return m, tea.Println(msg.line)
	}
	return m, nil
}

func (m *termModel) observe(f Frame) {
	m.last = f
	for i, u := range f.Ctrl {
		if i < len(m.signals) {
			m.chart.PushDataSet(m.signals[i], u)
		}
	}
	m.chart.DrawAll()

	m.stepMs = append(m.stepMs, float64(f.StepDuration)/float64(time.Millisecond))
	if len(m.stepMs) > stepHistory {
		m.stepMs = m.stepMs[len(m.stepMs)-stepHistory:]
	}

	angles := make([]float64, 0, len(m.hinges))
	for _, adr := range m.hinges {
		if adr < len(f.Qpos) {
			angles = append(angles, f.Qpos[adr])
		}
	}
	m.canvas.Clear()
	viz.DrawChain(m.canvas, angles)
}

func (m termModel) View() string {
	if m.quitting {
		return ""
	}
	st := m.styles

	status := st.Running.Render("RUNNING")
	if m.v.paused.Load() {
		status = st.Paused.Render("PAUSED")
	}
	header := st.Title.Render("robotview "+m.name) + "  " + status

	stats := strings.Join([]string{
		st.Row("step", "%d", m.last.Step),
		st.Row("sim time", "%.3fs", m.last.Time),
		st.Row("step time", "%.2fms", lastOr(m.stepMs, 0)),
		st.Row("controls", "%d", len(m.last.Ctrl)),
		st.Row("joints", "%d", len(m.hinges)),
	}, "\n")
	if len(m.stepMs) > 1 {
		graph := asciigraph.Plot(m.stepMs,
			asciigraph.Height(4),
			asciigraph.Width(30),
			asciigraph.Caption("step time (ms)"))
		stats += "\n\n" + st.Muted.Render(graph)
	}

	top := lipgloss.JoinHorizontal(lipgloss.Top,
		st.Panel.Render(st.Canvas.Render(m.canvas.String())),
		st.Panel.Render(stats),
	)

	var b strings.Builder
	b.WriteString(header + "\n")
	b.WriteString(top + "\n")
	if len(m.signals) > 0 {
		b.WriteString(st.Panel.Render(m.chart.View()) + "\n")
		b.WriteString(viz.Legend(m.theme, m.signals) + "\n")
	}
	b.WriteString(st.KeyHint.Render("space pause  ctrl+r reset  q quit") + "\n")
	return b.String()
}

func lastOr(v []float64, def float64) float64 {
	if len(v) == 0 {
		return def
	}
	return v[len(v)-1]
}
