package console

import "github.com/charmbracelet/lipgloss"

// Colors
var (
	lifecycleColor = lipgloss.Color("8")  // Gray
	noticeColor    = lipgloss.Color("11") // Yellow
	errorColor     = lipgloss.Color("9")  // Red
	outputColor    = lipgloss.Color("10") // Green
	spinnerColor   = lipgloss.Color("14") // Cyan
)

// Styles
var (
	lifecycleStyle = lipgloss.NewStyle().
			Foreground(lifecycleColor)

	noticeStyle = lipgloss.NewStyle().
			Foreground(noticeColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	outputStyle = lipgloss.NewStyle().
			Foreground(outputColor)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(spinnerColor)
)
