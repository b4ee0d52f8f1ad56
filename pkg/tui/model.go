// Package tui is the interactive evidence browser. It renders decoded
// prefetch records as a navigable list with a per-record detail pane.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kmorell/pfscan/pkg/engine/report"
)

type ViewState int

const (
	ViewStateList ViewState = iota
	ViewStateDetail
)

// LoadFunc produces the records to browse. It runs on the bubbletea
// command goroutine so it may block on disk.
type LoadFunc func() ([]report.Record, error)

// Model holds the browser state: the record set, which view is open,
// and where the cursors sit.
type Model struct {
	load     LoadFunc
	inputDir string

	state    ViewState
	records  []report.Record
	tagged   int
	loading  bool
	quitting bool
	err      error

	cursor        int
	detailsScroll int

	spinner   spinner.Model
	tickCount int
	width     int
	height    int
}

// tickMsg drives the decode-progress animation in the HUD.
type tickMsg time.Time

// recordsMsg delivers the loaded records (or the load failure) to Update.
type recordsMsg struct {
	records []report.Record
	err     error
}

func NewModel(inputDir string, load LoadFunc) Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = special

	return Model{
		load:     load,
		inputDir: inputDir,
		state:    ViewStateList,
		loading:  true,
		spinner:  sp,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadRecords, scheduleTick())
}

func (m Model) loadRecords() tea.Msg {
	records, err := m.load()
	return recordsMsg{records: records, err: err}
}

func scheduleTick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
