package tui

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kmorell/pfscan/pkg/engine/report"
)

// loadedModel builds a browser that has already finished decoding.
func loadedModel(records []report.Record) Model {
	m := NewModel(`C:\Windows\Prefetch`, func() ([]report.Record, error) {
		return records, nil
	})
	updated, _ := m.Update(recordsMsg{records: records})
	return updated.(Model)
}

func keyPress(m Model, key tea.KeyMsg) Model {
	updated, _ := m.Update(key)
	return updated.(Model)
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func calcRecord() report.Record {
	return report.Record{
		SourceFile:     "CALC.EXE-7A1BC2E4.pf",
		ExecutableName: "CALC.EXE",
		PrefetchHash:   "0x7A1BC2E4",
		FormatVersion:  30,
		RunCount:       12,
		LastRunTimes:   []string{"2024-02-14 06:01:02", "2024-02-13 18:22:41"},
		VolumeSerials:  []string{"A0B1C2D3"},
		VolumePaths:    []string{`\DEVICE\HARDDISKVOLUME2`},
		VolumeCreated:  []string{"2023-01-10 00:00:00"},
		AccessedFiles: []string{
			`\DEVICE\HARDDISKVOLUME2\WINDOWS\SYSTEM32\NTDLL.DLL`,
			`\DEVICE\HARDDISKVOLUME2\WINDOWS\SYSTEM32\KERNEL32.DLL`,
			`\DEVICE\HARDDISKVOLUME2\WINDOWS\SYSTEM32\CALC.EXE`,
		},
		TriageTags: []string{"frequent-flyer"},
	}
}

func cmdRecord() report.Record {
	return report.Record{
		SourceFile:     "CMD.EXE-087B4001.pf",
		ExecutableName: "CMD.EXE",
		PrefetchHash:   "0x087B4001",
		FormatVersion:  23,
		RunCount:       341,
		LastRunTimes:   []string{"2021-11-30 23:59:59"},
	}
}

func TestTUI_ListRendering(t *testing.T) {
	tests := []struct {
		name     string
		record   report.Record
		want     []string
		dontWant []string
	}{
		{
			name:   "Tagged record shows a hit marker",
			record: calcRecord(),
			want:   []string{"[!]", "CALC.EXE", "2024-02-14 06:01:02", "CALC.EXE-7A1BC2E4.pf"},
		},
		{
			name:     "Clean record stays unmarked",
			record:   cmdRecord(),
			want:     []string{"[ ]", "CMD.EXE", "341"},
			dontWant: []string{"[!]"},
		},
		{
			name: "Record without timestamps renders never",
			record: report.Record{
				SourceFile:     "GHOST.EXE-00000000.pf",
				ExecutableName: "GHOST.EXE",
				FormatVersion:  17,
			},
			want: []string{"GHOST.EXE", "never"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			view := loadedModel([]report.Record{tc.record}).View()

			for _, w := range tc.want {
				if !strings.Contains(view, w) {
					t.Errorf("expected view to contain %q.\nGot:\n%s", w, view)
				}
			}
			for _, dw := range tc.dontWant {
				if strings.Contains(view, dw) {
					t.Errorf("expected view NOT to contain %q.\nGot:\n%s", dw, view)
				}
			}
		})
	}
}

func TestTUI_DetailView(t *testing.T) {
	m := loadedModel([]report.Record{calcRecord(), cmdRecord()})
	m = keyPress(m, tea.KeyMsg{Type: tea.KeyEnter})
	view := m.View()

	for _, w := range []string{
		"CALC.EXE : CALC.EXE-7A1BC2E4.pf",
		"RUN COUNT:     12",
		"0x7A1BC2E4",
		"Windows 10/11",
		"frequent-flyer",
		"RUN HISTORY:",
		"2024-02-13 18:22:41",
		"serial A0B1C2D3",
		`\DEVICE\HARDDISKVOLUME2`,
		"FILES (3):",
		"NTDLL.DLL",
		"esc: back to list",
	} {
		if !strings.Contains(view, w) {
			t.Errorf("expected detail view to contain %q.\nGot:\n%s", w, view)
		}
	}
}

func TestTUI_Navigation(t *testing.T) {
	m := loadedModel([]report.Record{calcRecord(), cmdRecord()})

	// Cursor down onto the second record, then open it.
	m = keyPress(m, runeKey('j'))
	m = keyPress(m, tea.KeyMsg{Type: tea.KeyEnter})
	if !strings.Contains(m.View(), "CMD.EXE : CMD.EXE-087B4001.pf") {
		t.Fatalf("expected detail view for the second record.\nGot:\n%s", m.View())
	}

	// Esc returns to the list.
	m = keyPress(m, tea.KeyMsg{Type: tea.KeyEsc})
	if !strings.Contains(m.View(), "EXECUTABLE") {
		t.Fatalf("expected list view after esc.\nGot:\n%s", m.View())
	}

	// Cursor clamps at both ends.
	m = keyPress(m, runeKey('k'))
	m = keyPress(m, runeKey('k'))
	if m.cursor != 0 {
		t.Fatalf("cursor = %d, want 0", m.cursor)
	}
	m = keyPress(m, runeKey('j'))
	m = keyPress(m, runeKey('j'))
	if m.cursor != 1 {
		t.Fatalf("cursor = %d, want 1", m.cursor)
	}
}

func TestTUI_FileScroll(t *testing.T) {
	rec := calcRecord()
	rec.AccessedFiles = nil
	for i := 0; i < 20; i++ {
		rec.AccessedFiles = append(rec.AccessedFiles, fmt.Sprintf(`\WINDOWS\SYSTEM32\DLL%02d.DLL`, i))
	}

	m := loadedModel([]report.Record{rec})
	m = keyPress(m, tea.KeyMsg{Type: tea.KeyEnter})

	view := m.View()
	if !strings.Contains(view, "DLL00.DLL") || strings.Contains(view, "DLL19.DLL") {
		t.Fatalf("expected the first window of files.\nGot:\n%s", view)
	}

	m = keyPress(m, runeKey('j'))
	view = m.View()
	if strings.Contains(view, "DLL00.DLL") || !strings.Contains(view, "DLL01.DLL") {
		t.Fatalf("expected the window to advance past the first file.\nGot:\n%s", view)
	}
}

func TestTUI_LoadingSpinner(t *testing.T) {
	m := NewModel(`C:\Windows\Prefetch`, func() ([]report.Record, error) {
		return nil, nil
	})
	view := m.View()
	if !strings.Contains(view, "DECODING") {
		t.Errorf("expected loading status in HUD.\nGot:\n%s", view)
	}
	if !strings.Contains(view, "Decoding prefetch artifacts") {
		t.Errorf("expected loading message in body.\nGot:\n%s", view)
	}
}

func TestTUI_LoadFailure(t *testing.T) {
	m := NewModel("/missing", func() ([]report.Record, error) {
		return nil, errors.New("boom")
	})
	updated, _ := m.Update(recordsMsg{err: errors.New("no artifacts under /missing")})
	view := updated.(Model).View()

	if !strings.Contains(view, "DECODE FAILED") || !strings.Contains(view, "no artifacts under /missing") {
		t.Errorf("expected failure banner.\nGot:\n%s", view)
	}
}

func TestTUI_EmptyDirectory(t *testing.T) {
	view := loadedModel(nil).View()
	if !strings.Contains(view, "No prefetch artifacts decoded.") {
		t.Errorf("expected empty-directory message.\nGot:\n%s", view)
	}
}

func TestTUI_Quit(t *testing.T) {
	m := loadedModel([]report.Record{calcRecord()})
	updated, cmd := m.Update(runeKey('q'))
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
	if updated.(Model).View() != "" {
		t.Fatal("expected an empty view while quitting")
	}
}
