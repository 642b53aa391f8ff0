package viz

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles are the lipgloss styles of one theme.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Muted   lipgloss.Style
	Running lipgloss.Style
	Paused  lipgloss.Style
	KeyHint lipgloss.Style
	Panel   lipgloss.Style
	Canvas  lipgloss.Style
}

func NewStyles(t Theme) Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label:   lipgloss.NewStyle().Foreground(t.Muted).Width(10),
		Value:   lipgloss.NewStyle().Foreground(t.Text),
		Muted:   lipgloss.NewStyle().Foreground(t.Muted),
		Running: lipgloss.NewStyle().Bold(true).Foreground(t.Running),
		Paused:  lipgloss.NewStyle().Bold(true).Foreground(t.Paused),
		KeyHint: lipgloss.NewStyle().Foreground(t.Muted).Italic(true),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 1),
		Canvas: lipgloss.NewStyle().Foreground(t.Primary).Padding(0, 1),
	}
}

// Row renders a label/value pair on one line.
func (s Styles) Row(label, format string, args ...any) string {
	return s.Label.Render(label) + s.Value.Render(fmt.Sprintf(format, args...))
}

// Legend renders one colored swatch per name.
func Legend(t Theme, names []string) string {
	items := make([]string, len(names))
	for i, name := range names {
		sw := lipgloss.NewStyle().Foreground(t.Channel(i)).Bold(true).Render("━━")
		items[i] = sw + " " + name
	}
	return strings.Join(items, "  ")
}

var sparkRunes = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders the last width values scaled between their min and max.
func Sparkline(values []float64, width int) string {
	if width <= 0 {
		return ""
	}
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	var b strings.Builder
	for _, v := range values {
		idx := int((v - lo) / span * float64(len(sparkRunes)-1))
		b.WriteRune(sparkRunes[max(0, min(idx, len(sparkRunes)-1))])
	}
	return b.String()
}
