package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kmorell/pfscan/pkg/prefetch"
)

// maxDetailFiles caps the accessed-files window so the pane fits one screen.
const maxDetailFiles = 12

func (m Model) viewDetails() string {
	if m.cursor < 0 || m.cursor >= len(m.records) {
		return "No Record Selected"
	}
	rec := m.records[m.cursor]

	// Header Display: executable and source artifact.
	header := detailsHeaderStyle.Render(fmt.Sprintf("%s : %s", rec.ExecutableName, rec.SourceFile))

	// Execution Intelligence: format, hash, run counter.
	lastRun := rec.LastRun()
	if lastRun == "" {
		lastRun = "never"
	}
	intelBlock := lipgloss.JoinVertical(lipgloss.Left,
		special.Render(fmt.Sprintf("RUN COUNT:     %d", rec.RunCount)),
		special.Render(fmt.Sprintf("LAST RUN:      %s", lastRun)),
		subtle.Render(fmt.Sprintf("FORMAT:        %s", prefetch.Version(rec.FormatVersion))),
		subtle.Render(fmt.Sprintf("PREFETCH HASH: %s", rec.PrefetchHash)),
	)

	// Triage verdict line.
	verdict := subtle.Render("TRIAGE:        no rules matched")
	if len(rec.TriageTags) > 0 {
		verdict = danger.Render("TRIAGE:        " + strings.Join(rec.TriageTags, ", "))
	}

	sections := []string{header, "", intelBlock, verdict}

	// Run History (versions 26+ keep up to eight slots).
	if len(rec.LastRunTimes) > 0 {
		var runs []string
		runs = append(runs, highlight.Render("RUN HISTORY:"))
		for i, ts := range rec.LastRunTimes {
			runs = append(runs, dimStyle.Render(fmt.Sprintf("  %d. %s", i+1, ts)))
		}
		sections = append(sections, "", strings.Join(runs, "\n"))
	}

	// Volumes.
	if len(rec.VolumeSerials) > 0 {
		var vols []string
		vols = append(vols, highlight.Render("VOLUMES:"))
		for i, serial := range rec.VolumeSerials {
			line := fmt.Sprintf("  serial %s", serial)
			if i < len(rec.VolumePaths) {
				line += "  " + rec.VolumePaths[i]
			}
			if i < len(rec.VolumeCreated) {
				line += fmt.Sprintf("  (created %s)", rec.VolumeCreated[i])
			}
			vols = append(vols, dimStyle.Render(line))
		}
		sections = append(sections, "", strings.Join(vols, "\n"))
	}

	// Accessed files, windowed by the detail scroll offset.
	if len(rec.AccessedFiles) > 0 {
		start := m.detailsScroll
		if start > len(rec.AccessedFiles)-1 {
			start = len(rec.AccessedFiles) - 1
		}
		if start < 0 {
			start = 0
		}
		end := start + maxDetailFiles
		if end > len(rec.AccessedFiles) {
			end = len(rec.AccessedFiles)
		}

		var files []string
		files = append(files, highlight.Render(fmt.Sprintf("FILES (%d):", len(rec.AccessedFiles))))
		if start > 0 {
			files = append(files, dimStyle.Render("  ..."))
		}
		for _, f := range rec.AccessedFiles[start:end] {
			files = append(files, dimStyle.Render("  "+f))
		}
		if end < len(rec.AccessedFiles) {
			files = append(files, dimStyle.Render("  ..."))
		}
		sections = append(sections, "", strings.Join(files, "\n"))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	return detailsBoxStyle.Render(content)
}
