package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kmorell/pfscan/pkg/casedb"
	"github.com/kmorell/pfscan/pkg/engine"
	"github.com/kmorell/pfscan/pkg/engine/history"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Print the run ledger and drift between the latest runs",
	Long: `Prints the most recent entries of the run ledger, and the drift
(new or disappeared executables, count deltas) between the two latest
runs.

Example:
  pfscan runs
  pfscan runs --limit 25 --ledger ./case/ledger.jsonl`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if config.NoLedger {
			fmt.Println("Error: the run ledger is disabled (--no-ledger)")
			os.Exit(1)
		}

		cfg := config
		cfg.SkipTelemetry = true
		cfg.CaseDBPath = "" // read separately below

		eng, err := engine.New(cmd.Context(), engine.WithConfig(cfg))
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer eng.Close(cmd.Context())

		snaps, err := eng.History.LoadWindow(runsLimit)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if len(snaps) == 0 {
			fmt.Println("No runs recorded yet.")
			return
		}

		fmt.Printf("%-10s %-20s %6s %6s %7s  %s\n", "RUN", "TIME (UTC)", "SEEN", "PARSED", "SKIPPED", "INPUT")
		for _, s := range snaps {
			fmt.Printf("%-10s %-20s %6d %6d %7d  %s\n",
				shortID(s.RunID),
				time.Unix(s.Timestamp, 0).UTC().Format("2006-01-02 15:04:05"),
				s.FilesSeen, s.Parsed, s.Skipped, s.InputDir)
		}

		if len(snaps) >= 2 {
			prev, cur := snaps[len(snaps)-2], snaps[len(snaps)-1]
			drift := history.Diff(prev, cur)

			fmt.Printf("\nDrift %s -> %s:\n", shortID(prev.RunID), shortID(cur.RunID))
			if len(drift.NewExecutables) > 0 {
				fmt.Printf("  new:  %s\n", strings.Join(drift.NewExecutables, ", "))
			}
			if len(drift.GoneExecutables) > 0 {
				fmt.Printf("  gone: %s\n", strings.Join(drift.GoneExecutables, ", "))
			}
			if len(drift.NewExecutables) == 0 && len(drift.GoneExecutables) == 0 {
				fmt.Println("  executables unchanged")
			}
			fmt.Printf("  parsed %+d, skipped %+d\n", drift.ParsedDelta, drift.SkippedDelta)
		}

		if config.CaseDBPath != "" {
			db, err := casedb.Open(config.CaseDBPath)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}
			defer db.Close()
			if n, err := db.CountArtifacts(); err == nil {
				fmt.Printf("\nCase DB: %d artifacts tracked\n", n)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().IntVar(&runsLimit, "limit", 10, "Ledger entries to show")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
