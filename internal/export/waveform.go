// Package export renders control waveforms and chain poses to text, SVG
// and PNG.
package export

import (
	"fmt"
	"math"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/robotview/internal/dynamo"
	"github.com/san-kum/robotview/internal/storage"
)

// Waveform is a set of control channels sampled on a common time axis.
type Waveform struct {
	Times    []float64
	Channels [][]float64
	Names    []string
}

// SampleController evaluates ctrl at rate Hz over [0, duration); a
// non-positive duration or rate yields an empty waveform. The
// state passed to the controller is nil, so only time-driven controllers
// give meaningful output.
func SampleController(ctrl dynamo.Controller, duration, rate float64, names []string) Waveform {
	var n int
	if count := duration * rate; count > 0 && !math.IsInf(count, 1) {
		n = int(count)
	}
	w := Waveform{Times: make([]float64, 0, n), Names: names}
	for i := 0; i < n; i++ {
		t := float64(i) / rate
		u := ctrl.Compute(nil, t)
		if w.Channels == nil {
			w.Channels = make([][]float64, len(u))
		}
		w.Times = append(w.Times, t)
		for c := range w.Channels {
			w.Channels[c] = append(w.Channels[c], u[c])
		}
	}
	return w
}

// FromTrace builds a waveform from the control columns of a recording.
func FromTrace(tr *storage.Trace, names []string) Waveform {
	w := Waveform{Times: tr.Times, Names: names}
	for i := 0; i < tr.NumChannels(); i++ {
		w.Channels = append(w.Channels, tr.Channel(i))
	}
	return w
}

func (w Waveform) name(i int) string {
	if i < len(w.Names) && w.Names[i] != "" {
		return w.Names[i]
	}
	return fmt.Sprintf("u%d", i)
}

var asciiColors = []asciigraph.AnsiColor{
	asciigraph.Red, asciigraph.Orange, asciigraph.Yellow,
	asciigraph.Green, asciigraph.Cyan, asciigraph.Blue,
	asciigraph.Magenta, asciigraph.Purple, asciigraph.Gray,
}

// ASCII plots all channels in one chart, or returns "" when there is
// nothing to plot.
func (w Waveform) ASCII(width, height int, color bool) string {
	if len(w.Channels) == 0 || len(w.Times) == 0 {
		return ""
	}
	opts := []asciigraph.Option{
		asciigraph.Width(width),
		asciigraph.Height(height),
		asciigraph.Precision(2),
	}
	if color {
		colors := make([]asciigraph.AnsiColor, len(w.Channels))
		for i := range colors {
			colors[i] = asciiColors[i%len(asciiColors)]
		}
		opts = append(opts, asciigraph.SeriesColors(colors...))
	}
	return asciigraph.PlotMany(w.Channels, opts...)
}
