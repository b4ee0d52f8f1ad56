package tui

import "github.com/charmbracelet/lipgloss"

// Amber-on-slate terminal palette. Red is reserved for triage hits so a
// tagged record is the loudest thing on screen.
var (
	colorAccent  = lipgloss.Color("#00D7D7") // borders, headers
	colorOK      = lipgloss.Color("#87D787") // status, counters
	colorText    = lipgloss.Color("#D0D0D0")
	colorFaint   = lipgloss.Color("#626262")
	colorHit     = lipgloss.Color("#FF5F5F") // triage hit
	colorWorking = lipgloss.Color("#FFAF5F") // decode in progress

	subtle    = lipgloss.NewStyle().Foreground(colorFaint)
	dimStyle  = subtle
	highlight = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	special   = lipgloss.NewStyle().Foreground(colorOK).Bold(true)
	danger    = lipgloss.NewStyle().Foreground(colorHit).Bold(true)
	warning   = lipgloss.NewStyle().Foreground(colorWorking)

	hudStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(colorAccent).
			Padding(0, 1).
			Foreground(colorText)

	hudLabelStyle = lipgloss.NewStyle().
			Foreground(colorFaint).
			Bold(true).
			MarginRight(1)

	hudValueStyle = lipgloss.NewStyle().
			Foreground(colorOK).
			Bold(true)

	// List rows render their own cursor prefix, so no padding here.
	listSelectedStyle = lipgloss.NewStyle().
				Foreground(colorText).
				Background(lipgloss.Color("#303030")).
				Bold(true)

	listNormalStyle = lipgloss.NewStyle().
			Foreground(colorFaint)

	detailsBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(colorFaint).
			Padding(1, 2).
			MarginTop(1)

	detailsHeaderStyle = lipgloss.NewStyle().
				Foreground(colorAccent).
				Bold(true).
				Underline(true).
				MarginBottom(1)
)
