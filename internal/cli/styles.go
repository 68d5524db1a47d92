package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/habitcraft/internal/constants"
	"github.com/julianstephens/habitcraft/internal/utils"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	MutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Width(18)
)

// Accent is the foreground style for a habit color.
func Accent(color constants.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(string(utils.NormalizeColor(color))))
}

// Swatch renders a dot in the habit's accent color.
func Swatch(color constants.Color) string {
	return Accent(color).Render("●")
}

// Check renders a completion marker.
func Check(done bool) string {
	if done {
		return SuccessStyle.Render("[x]")
	}
	return MutedStyle.Render("[ ]")
}
