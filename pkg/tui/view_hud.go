package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// viewHUD renders the one line status bar above the list.
func (m Model) viewHUD() string {
	title := highlight.Render("PFSCAN EVIDENCE BROWSER")

	status := special.Render(fmt.Sprintf("[ %-11s ]", "READY"))
	if m.loading {
		dots := strings.Repeat(".", m.tickCount%4)
		status = warning.Render(fmt.Sprintf("[ %-11s ]", "DECODING"+dots))
	}

	tagStyle := hudValueStyle
	if m.tagged > 0 {
		tagStyle = danger
	}
	counters := hudLabelStyle.Render("RECORDS:") + hudValueStyle.Render(fmt.Sprintf("%d", len(m.records))) +
		"  |  " +
		hudLabelStyle.Render("TAGGED:") + tagStyle.Render(fmt.Sprintf("%d", m.tagged))

	left := title + "  " + status
	gap := m.width - 4 - lipgloss.Width(left) - lipgloss.Width(counters)
	if gap < 2 {
		gap = 2
	}

	hud := hudStyle
	if m.width > 2 {
		hud = hud.Width(m.width - 2)
	}
	return hud.Render(left + strings.Repeat(" ", gap) + counters)
}
