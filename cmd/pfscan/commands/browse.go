package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kmorell/pfscan/pkg/engine"
	"github.com/kmorell/pfscan/pkg/engine/report"
	"github.com/kmorell/pfscan/pkg/tui"
)

var browseCmd = &cobra.Command{
	Use:   "browse <input_folder>",
	Short: "Decode a directory and browse the records interactively",
	Long: `Decodes the input directory and opens a terminal browser over the
records: a list view with per-record details. Nothing is written.

Example:
  pfscan browse /evidence/Prefetch --rules r.yaml`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config.InputDir = args[0]

		// Stderr log lines would tear the live view; skipped files are
		// visible in a regular scan.
		quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

		eng, err := engine.New(cmd.Context(), engine.WithConfig(config), engine.WithLogger(quiet))
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		model := tui.NewModel(config.InputDir, func() ([]report.Record, error) {
			return eng.Collect(cmd.Context())
		})

		p := tea.NewProgram(model)
		if _, err := p.Run(); err != nil {
			fmt.Printf("Error: %v\n", err)
			_ = eng.Close(cmd.Context())
			os.Exit(1)
		}
		_ = eng.Close(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
}
