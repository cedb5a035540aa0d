package cli

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	primary = lipgloss.Color("#7C3AED")
	green   = lipgloss.Color("#10B981")
	red     = lipgloss.Color("#EF4444")
	yellow  = lipgloss.Color("#F59E0B")
	dim     = lipgloss.Color("#6B7280")

	boldText = lipgloss.NewStyle().Bold(true)
	dimText  = lipgloss.NewStyle().Foreground(dim)
	okText   = lipgloss.NewStyle().Foreground(green).Bold(true)
	failText = lipgloss.NewStyle().Foreground(red).Bold(true)
	warnText = lipgloss.NewStyle().Foreground(yellow)

	summaryCard = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primary).
			Padding(0, 1)

	resultOK     = summaryCard.BorderForeground(green)
	resultFailed = summaryCard.BorderForeground(red)
)
