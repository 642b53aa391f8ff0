package export

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// WaveformPlot builds a gonum plot with one line per channel.
func WaveformPlot(w Waveform, title string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "control"
	p.Add(plotter.NewGrid())

	for c, ch := range w.Channels {
		n := min(len(ch), len(w.Times))
		pts := make(plotter.XYs, n)
		for i := 0; i < n; i++ {
			pts[i].X = w.Times[i]
			pts[i].Y = ch[i]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, errors.Wrapf(err, "channel %d", c)
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = plotutil.Color(c)
		p.Add(line)
		p.Legend.Add(w.name(c), line)
	}
	p.Legend.Top = true
	return p, nil
}

// SaveImage writes the waveform to path. The format follows the file
// extension (png, svg, pdf, ...).
func SaveImage(w Waveform, title, path string) error {
	if len(w.Channels) == 0 {
		return errors.New("waveform has no channels")
	}
	p, err := WaveformPlot(w, title)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "creating output directory")
		}
	}
	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
