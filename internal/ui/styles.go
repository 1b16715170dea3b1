package ui

import "github.com/charmbracelet/lipgloss"

// ANSI colors, for broad terminal support
var (
	ColorCyan   = lipgloss.Color("6")
	ColorYellow = lipgloss.Color("3")
	ColorRed    = lipgloss.Color("1")
	ColorGreen  = lipgloss.Color("2")
	ColorGray   = lipgloss.Color("8")
	ColorBlack  = lipgloss.Color("0")
)

var (
	TimestampStyle = lipgloss.NewStyle().Foreground(ColorCyan)
	LogStreamStyle = lipgloss.NewStyle().Foreground(ColorYellow)

	// Progress lines on stderr ("Discovered 12 streams...")
	StatusStyle = lipgloss.NewStyle().Foreground(ColorGray).Italic(true)

	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorYellow)
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorGreen)
	MutedStyle   = lipgloss.NewStyle().Foreground(ColorGray)

	// Matches of --highlight in record messages
	HighlightStyle = lipgloss.NewStyle().
			Background(ColorYellow).
			Foreground(ColorBlack).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().Foreground(ColorCyan).Bold(true)

	SectionTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorCyan)
)
