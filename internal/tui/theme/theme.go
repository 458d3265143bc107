// Package theme provides the Lip Gloss palette and reusable styles for the
// tally TUI. It is a leaf package with no internal imports.
package theme

import "github.com/charmbracelet/lipgloss"

// Option colors.
var (
	ColorOptionA = lipgloss.Color("#3b82f6")
	ColorOptionB = lipgloss.Color("#a855f7")
	ColorBlank   = lipgloss.Color("#6b7280")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// OptionColor returns the bar color for an option name.
func OptionColor(option string) lipgloss.Color {
	switch option {
	case "optionA":
		return ColorOptionA
	case "optionB":
		return ColorOptionB
	default:
		return ColorBlank
	}
}

// TurnoutColor shades the turnout line: green once most of the unit has
// voted, amber past a quarter, dim otherwise.
func TurnoutColor(pct float64) lipgloss.Color {
	switch {
	case pct > 0.5:
		return ColorHealthy
	case pct > 0.25:
		return ColorWarning
	default:
		return ColorDimmed
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	StyleSelectedBorder = StyleBorder.
				BorderForeground(ColorBright)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorDanger)

	StyleAdmin = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorHealthy)
)
