package review

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Palette defines the colour roles used by the review tables.
type Palette struct {
	Name     string
	Muted    string
	Border   string
	Added    string
	Modified string
	Error    string
	Success  string
}

// DefaultPalette is the baseline palette.
var DefaultPalette = Palette{
	Name:     "default",
	Muted:    "#8B9AAE",
	Border:   "#223043",
	Added:    "#D29922",
	Modified: "#3FB950",
	Error:    "#F85149",
	Success:  "#3FB950",
}

// HighContrastPalette favors visibility on low-contrast terminals.
var HighContrastPalette = Palette{
	Name:     "high-contrast",
	Muted:    "#C0C0C0",
	Border:   "#FFFFFF",
	Added:    "#FFB000",
	Modified: "#00FF5A",
	Error:    "#FF4040",
	Success:  "#00FF5A",
}

// Palettes lists available palettes by name.
var Palettes = map[string]Palette{
	"default":       DefaultPalette,
	"high-contrast": HighContrastPalette,
}

// Styles contains lipgloss styles derived from a palette.
type Styles struct {
	Title    lipgloss.Style
	Header   lipgloss.Style
	Border   lipgloss.Style
	Muted    lipgloss.Style
	Added    lipgloss.Style
	Modified lipgloss.Style
	Error    lipgloss.Style
	Success  lipgloss.Style
}

// BuildStyles converts a palette into styles bound to renderer.
func BuildStyles(renderer *lipgloss.Renderer, palette Palette) Styles {
	return Styles{
		Title:    renderer.NewStyle().Bold(true),
		Header:   renderer.NewStyle().Foreground(lipgloss.Color(palette.Muted)),
		Border:   renderer.NewStyle().Foreground(lipgloss.Color(palette.Border)),
		Muted:    renderer.NewStyle().Foreground(lipgloss.Color(palette.Muted)),
		Added:    renderer.NewStyle().Foreground(lipgloss.Color(palette.Added)),
		Modified: renderer.NewStyle().Foreground(lipgloss.Color(palette.Modified)),
		Error:    renderer.NewStyle().Foreground(lipgloss.Color(palette.Error)),
		Success:  renderer.NewStyle().Foreground(lipgloss.Color(palette.Success)),
	}
}

// newRenderer returns a renderer for w. Colour is dropped when noColor is set.
func newRenderer(w io.Writer, noColor bool) *lipgloss.Renderer {
	renderer := lipgloss.NewRenderer(w)
	if noColor {
		renderer.SetColorProfile(termenv.Ascii)
	}
	return renderer
}
