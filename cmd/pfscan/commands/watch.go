package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kmorell/pfscan/internal/audit"
	"github.com/kmorell/pfscan/internal/watch"
	"github.com/kmorell/pfscan/pkg/engine"
	"github.com/kmorell/pfscan/pkg/engine/history"
)

var watchCmd = &cobra.Command{
	Use:   "watch <input_folder> <output_folder>",
	Short: "Scan, then live-monitor the input directory",
	Long: `Runs an initial scan, then watches the input directory and rescans
whenever artifacts appear or change. The report and all sinks are kept
current; new executables trigger a drift alert. Ctrl-C exits cleanly.

Example:
  pfscan watch /evidence/Prefetch ./out --webhook https://hooks.slack.com/...`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		config.InputDir = args[0]
		config.OutputDir = args[1]

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		eng, err := engine.New(ctx, engine.WithConfig(config))
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		res, err := eng.Run(ctx)
		if err != nil && !errors.Is(err, engine.ErrPartialResult) {
			fmt.Printf("Error: %v\n", err)
			_ = eng.Close(context.Background())
			os.Exit(1)
		}
		printRunSummary(res)

		prev := snapshotOf(res)

		w, err := watch.New(eng.Logger, config.InputDir, config.Extensions, func(ctx context.Context, paths []string) {
			eng.Logger.Info("Change detected", "paths", len(paths))
			res, err := eng.Run(ctx)
			if err != nil && !errors.Is(err, engine.ErrPartialResult) {
				eng.Logger.Error("Rescan failed", "error", err)
				return
			}

			cur := snapshotOf(res)
			drift := history.Diff(prev, cur)
			if len(drift.NewExecutables) > 0 {
				fmt.Printf("[DRIFT] New executables: %s\n", strings.Join(drift.NewExecutables, ", "))
				if err := eng.Notifier.SendDriftAlert(config.InputDir, drift.NewExecutables); err != nil {
					eng.Logger.Warn("Drift alert failed", "error", err)
				}
			}
			prev = cur

			fmt.Printf("[RESCAN] Parsed %d/%d artifacts (%d skipped)\n", res.Parsed, res.FilesSeen, res.Skipped)
		})
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			_ = eng.Close(context.Background())
			os.Exit(1)
		}

		if err := w.Start(ctx); err != nil {
			fmt.Printf("Error: %v\n", err)
			_ = eng.Close(context.Background())
			os.Exit(1)
		}

		fmt.Printf("\n[WATCH] Monitoring %s (Ctrl-C to stop)\n", config.InputDir)
		<-ctx.Done()
		w.Stop()

		stats := w.GetStats()
		fmt.Printf("\n[WATCH] Stopped. %d events seen, %d rescans\n", stats.EventsSeen, stats.Dispatches)
		audit.LogAction("watch", config.InputDir, fmt.Sprintf("events=%d dispatches=%d", stats.EventsSeen, stats.Dispatches))

		_ = eng.Close(context.Background())
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// snapshotOf reduces a run to the fields drift detection compares.
func snapshotOf(res *engine.RunResult) history.Snapshot {
	seen := make(map[string]bool)
	var exes []string
	for _, rec := range res.Records {
		if !seen[rec.ExecutableName] {
			seen[rec.ExecutableName] = true
			exes = append(exes, rec.ExecutableName)
		}
	}
	sort.Strings(exes)
	return history.Snapshot{
		RunID:       res.RunID,
		Parsed:      res.Parsed,
		Skipped:     res.Skipped,
		Executables: exes,
	}
}
