package cli

import "github.com/charmbracelet/lipgloss"

const accentColor = lipgloss.Color("#7D56F4")

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FAFAFA")).
	Background(accentColor).
	Padding(1, 5).
	MarginBottom(1).
	Align(lipgloss.Center).
	Border(lipgloss.RoundedBorder())

// Styles of the policies validate table.
var (
	tableBorderStyle = lipgloss.NewStyle().Foreground(accentColor)
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	invalidCellStyle = tableCellStyle.Foreground(lipgloss.Color("#FF5F87"))
)
