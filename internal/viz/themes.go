package viz

import "github.com/charmbracelet/lipgloss"

// Theme colors the agents and the playfield.
type Theme struct {
	Name     string
	Herder   lipgloss.Color
	Target   lipgloss.Color
	Centroid lipgloss.Color
	Field    lipgloss.Color
	Text     lipgloss.Color
	Muted    lipgloss.Color
}

var (
	ThemeClassic = Theme{
		Name:     "classic",
		Herder:   lipgloss.Color("#3c78d8"),
		Target:   lipgloss.Color("#f1c232"),
		Centroid: lipgloss.Color("#ff00ff"),
		Field:    lipgloss.Color("#6aa84f"),
		Text:     lipgloss.Color("#ffffff"),
		Muted:    lipgloss.Color("#888888"),
	}

	ThemeOcean = Theme{
		Name:     "ocean",
		Herder:   lipgloss.Color("#00a8cc"),
		Target:   lipgloss.Color("#ffd700"),
		Centroid: lipgloss.Color("#ff9ff3"),
		Field:    lipgloss.Color("#0077be"),
		Text:     lipgloss.Color("#e0f0ff"),
		Muted:    lipgloss.Color("#4488aa"),
	}

	ThemeMinimal = Theme{
		Name:     "minimal",
		Herder:   lipgloss.Color("#ffffff"),
		Target:   lipgloss.Color("#cccccc"),
		Centroid: lipgloss.Color("#0088ff"),
		Field:    lipgloss.Color("#888888"),
		Text:     lipgloss.Color("#ffffff"),
		Muted:    lipgloss.Color("#666666"),
	}

	CurrentTheme = ThemeClassic

	Themes = []Theme{ThemeClassic, ThemeOcean, ThemeMinimal}
)

// GetTheme returns a theme by name, falling back to classic.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeClassic
}

func SetTheme(name string) {
	CurrentTheme = GetTheme(name)
}

// NextTheme switches to the theme after the current one.
func NextTheme() {
	for i, t := range Themes {
		if t.Name == CurrentTheme.Name {
			CurrentTheme = Themes[(i+1)%len(Themes)]
			return
		}
	}
	CurrentTheme = ThemeClassic
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}
