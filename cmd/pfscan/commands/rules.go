package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kmorell/pfscan/pkg/engine/triage"
)

var rulesCmd = &cobra.Command{
	Use:   "rules <rules.yaml>",
	Short: "Compile a triage rules file without scanning",
	Long: `Loads and compiles a triage rules file, reporting any CEL errors.
Nothing is scanned.

Example:
  pfscan rules ./triage.yaml`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

		eng, err := triage.Load(quiet, args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		rules := eng.Rules()
		fmt.Printf("[OK] %d rules compiled\n", len(rules))
		for _, r := range rules {
			tag := r.Tag
			if tag == "" {
				tag = r.ID
			}
			fmt.Printf("  %-24s -> %s\n", r.ID, tag)
			if r.Description != "" {
				fmt.Printf("  %-24s    %s\n", "", r.Description)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}
