package cli

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	PrimaryColor = lipgloss.Color("#2680C2")
	SuccessColor = lipgloss.Color("#3EBD93")
	ErrorColor   = lipgloss.Color("#E12D39")
	SubtleColor  = lipgloss.Color("#7B8794")

	// TitleStyle is used for section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)

	SuccessStyle = lipgloss.NewStyle().Foreground(SuccessColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ErrorColor)
	SubtleStyle  = lipgloss.NewStyle().Foreground(SubtleColor)

	// HeaderStyle renders table column headers.
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))

	// TotalStyle highlights rupiah totals.
	TotalStyle = lipgloss.NewStyle().Bold(true)
)

const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
)

// FormatTitle formats a section title.
func FormatTitle(title string) string {
	return TitleStyle.Render(title)
}

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

// FormatInfo formats a secondary message.
func FormatInfo(message string) string {
	return SubtleStyle.Render(message)
}

// Header renders each column name with HeaderStyle.
func Header(columns ...string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = HeaderStyle.Render(c)
	}
	return out
}
