package viz

import (
	"sort"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the color scheme of the terminal viewer. Channels colors the
// per-actuator traces and wraps when there are more actuators than colors.
type Theme struct {
	Name     string
	Primary  lipgloss.Color
	Text     lipgloss.Color
	Muted    lipgloss.Color
	Border   lipgloss.Color
	Running  lipgloss.Color
	Paused   lipgloss.Color
	Channels []lipgloss.Color
}

var (
	ThemeDark = Theme{
		Name:    "dark",
		Primary: lipgloss.Color("86"),
		Text:    lipgloss.Color("252"),
		Muted:   lipgloss.Color("242"),
		Border:  lipgloss.Color("240"),
		Running: lipgloss.Color("82"),
		Paused:  lipgloss.Color("220"),
		Channels: []lipgloss.Color{
			"196", "208", "226", "46", "51", "21", "201", "141", "250",
		},
	}

	ThemeRetro = Theme{
		Name:     "retro",
		Primary:  lipgloss.Color("#00ff00"),
		Text:     lipgloss.Color("#00cc00"),
		Muted:    lipgloss.Color("#005500"),
		Border:   lipgloss.Color("#005500"),
		Running:  lipgloss.Color("#88ff88"),
		Paused:   lipgloss.Color("#ffff00"),
		Channels: []lipgloss.Color{"#00ff00", "#88ff88", "#00aa00", "#ccffcc"},
	}

	ThemeMinimal = Theme{
		Name:     "minimal",
		Primary:  lipgloss.Color("#ffffff"),
		Text:     lipgloss.Color("#cccccc"),
		Muted:    lipgloss.Color("#888888"),
		Border:   lipgloss.Color("#444444"),
		Running:  lipgloss.Color("#ffffff"),
		Paused:   lipgloss.Color("#888888"),
		Channels: []lipgloss.Color{"#ffffff", "#0088ff", "#ffaa00"},
	}

	themes = map[string]Theme{
		ThemeDark.Name:    ThemeDark,
		ThemeRetro.Name:   ThemeRetro,
		ThemeMinimal.Name: ThemeMinimal,
	}
)

// GetTheme returns the named theme, falling back to the dark theme.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return ThemeDark
}

func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for n := range themes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Channel returns the trace color for actuator i.
func (t Theme) Channel(i int) lipgloss.Color {
	if len(t.Channels) == 0 {
		return t.Text
	}
	if i < 0 {
		i = -i
	}
	return t.Channels[i%len(t.Channels)]
}
