package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent  = lipgloss.Color("63")
	colorMuted   = lipgloss.Color("245")
	colorIncome  = lipgloss.Color("42")
	colorExpense = lipgloss.Color("203")
	colorWarn    = lipgloss.Color("214")

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	mutedStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	incomeStyle   = lipgloss.NewStyle().Foreground(colorIncome)
	expenseStyle  = lipgloss.NewStyle().Foreground(colorExpense)
	warnStyle     = lipgloss.NewStyle().Foreground(colorWarn)
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorExpense)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)

	sidebarStyle = lipgloss.NewStyle().
			Width(22).
			Padding(1, 2).
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(colorMuted)

	contentStyle = lipgloss.NewStyle().Padding(1, 2)

	cardStyle = lipgloss.NewStyle().
			Padding(0, 1).
			MarginRight(1).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent)

	formStyle = lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent)
)
