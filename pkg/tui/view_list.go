package tui

import (
	"fmt"
	"strings"
)

func (m Model) viewList() string {
	s := strings.Builder{}

	if len(m.records) == 0 {
		if m.loading {
			return fmt.Sprintf("\n\n   %s Decoding prefetch artifacts from %s", m.spinner.View(), m.inputDir)
		}
		return "\n\n   " + subtle.Render("No prefetch artifacts decoded.")
	}

	// Header
	headerTxt := fmt.Sprintf("    %-24s | %-6s | %-19s | %s", "EXECUTABLE", "RUNS", "LAST RUN", "SOURCE FILE")
	s.WriteString(dimStyle.Render(headerTxt) + "\n")
	s.WriteString(dimStyle.Render("    "+strings.Repeat("─", 76)) + "\n")

	start, end := m.visibleRange(len(m.records))

	for i := start; i < end; i++ {
		rec := m.records[i]
		isSelected := i == m.cursor

		// Triage indicator
		icon := "[ ]"
		if len(rec.TriageTags) > 0 {
			icon = "[!]"
		}

		dispExe := rec.ExecutableName
		if len(dispExe) > 24 {
			dispExe = dispExe[:21] + "..."
		}

		lastRun := rec.LastRun()
		if lastRun == "" {
			lastRun = "never"
		}

		dispSource := rec.SourceFile
		if len(dispSource) > 34 {
			dispSource = dispSource[:31] + "..."
		}

		line := fmt.Sprintf("%s %-24s | %-6d | %-19s | %s", icon, dispExe, rec.RunCount, lastRun, dispSource)

		if isSelected {
			s.WriteString(listSelectedStyle.Render("> "+line) + "\n")
		} else {
			s.WriteString(listNormalStyle.Render("  "+line) + "\n")
		}
	}

	if end < len(m.records) {
		s.WriteString(dimStyle.Render("   ..."))
	}

	return s.String()
}

// visibleRange picks the rows to draw. The window stays anchored at the
// top until the cursor reaches its last row, then slides down with it.
func (m Model) visibleRange(total int) (int, int) {
	rows := m.height - 9 // HUD, header rule and footer
	if rows < 6 {
		rows = 6
	}
	if total <= rows {
		return 0, total
	}

	start := 0
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	if start > total-rows {
		start = total - rows
	}
	return start, start + rows
}
