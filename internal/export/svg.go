package export

import (
	"fmt"
	"strings"

	"github.com/san-kum/robotview/internal/viz"
)

var svgColors = []string{
	"#ff4444", "#ff8800", "#ffcc00", "#00ff88", "#00ccff",
	"#4466ff", "#ff00ff", "#aa88ff", "#cccccc",
}

// CanvasToSVG draws every lit dot of a braille canvas as a circle. scale
// is the dot pitch in SVG units.
func CanvasToSVG(c *viz.Canvas, scale float64) string {
	if c == nil {
		return ""
	}
	dw, dh := c.Dots()
	width := float64(dw) * scale
	height := float64(dh) * scale

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g fill="#00ffcc">
`, width, height, width, height)

	r := scale * 0.4
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			if c.IsSet(x, y) {
				fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n",
					float64(x)*scale+scale/2, float64(y)*scale+scale/2, r)
			}
		}
	}
	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// WaveformSVG draws each channel as a polyline against time, sharing one
// vertical scale. It returns "" for fewer than two samples.
func WaveformSVG(w Waveform, width, height int) string {
	if len(w.Times) < 2 || len(w.Channels) == 0 {
		return ""
	}

	minX, maxX := w.Times[0], w.Times[len(w.Times)-1]
	minY, maxY := w.Channels[0][0], w.Channels[0][0]
	for _, ch := range w.Channels {
		for _, v := range ch {
			minY = min(minY, v)
			maxY = max(maxY, v)
		}
	}
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.1
	rangeY *= 1.2

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	for c, ch := range w.Channels {
		fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" data-name="%s" d="`,
			svgColors[c%len(svgColors)], w.name(c))
		for i, v := range ch {
			if i >= len(w.Times) {
				break
			}
			x := (w.Times[i] - minX) / rangeX * float64(width)
			y := float64(height) - (v-minY)/rangeY*float64(height)
			if i == 0 {
				fmt.Fprintf(&sb, "M%.1f,%.1f", x, y)
			} else {
				fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
			}
		}
		sb.WriteString("\"/>\n")
	}
	sb.WriteString("</svg>")
	return sb.String()
}
