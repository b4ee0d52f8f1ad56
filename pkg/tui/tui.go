package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles strict state transitions for the browser.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}

	case recordsMsg:
		m.loading = false
		m.err = msg.err
		m.records = msg.records
		m.tagged = 0
		for _, rec := range m.records {
			if len(rec.TriageTags) > 0 {
				m.tagged++
			}
		}

	case tickMsg:
		m.tickCount++
		if m.loading {
			return m, scheduleTick()
		}
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		switch m.state {
		case ViewStateDetail:
			if m.detailsScroll > 0 {
				m.detailsScroll--
			}
		default:
			if m.cursor > 0 {
				m.cursor--
			}
		}

	case "down", "j":
		switch m.state {
		case ViewStateDetail:
			m.detailsScroll++
		default:
			if m.cursor < len(m.records)-1 {
				m.cursor++
			}
		}

	case "enter", " ":
		if m.state == ViewStateList && len(m.records) > 0 {
			m.state = ViewStateDetail
			m.detailsScroll = 0
		}

	case "esc", "b":
		if m.state == ViewStateDetail {
			m.state = ViewStateList
		}
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return fmt.Sprintf("\n %s %s\n\n %s\n",
			danger.Render("DECODE FAILED:"),
			m.err.Error(),
			helpStyle("q: quit"),
		)
	}

	s := strings.Builder{}
	s.WriteString(m.viewHUD())
	s.WriteString("\n")

	switch m.state {
	case ViewStateDetail:
		s.WriteString(m.viewDetails())
	default:
		s.WriteString(m.viewList())
	}

	s.WriteString("\n\n")
	if m.state == ViewStateDetail {
		s.WriteString(helpStyle("esc: back to list • j/k: scroll files • q: quit"))
	} else {
		s.WriteString(helpStyle("enter: record details • j/k: move • q: quit"))
	}
	return s.String()
}

func helpStyle(s string) string {
	return subtle.Render(s)
}
