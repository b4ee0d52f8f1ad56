package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kmorell/pfscan/pkg/engine"
)

var archiveTarget string

var archiveCmd = &cobra.Command{
	Use:   "archive <input_folder> <output_folder>",
	Short: "Scan, then preserve the evidence to a blob store",
	Long: `Runs a scan, then uploads the input artifacts, the report, and a
chain-of-custody manifest (per-file SHA-256, run ID, collector identity)
to the target store.

Example:
  pfscan archive /evidence/Prefetch ./out --target /mnt/evidence
  pfscan archive /evidence/Prefetch ./out --target s3://dfir-evidence/case-042`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		config.InputDir = args[0]
		config.OutputDir = args[1]
		ctx := cmd.Context()

		eng, err := engine.New(ctx, engine.WithConfig(config))
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		res, runErr := eng.Run(ctx)
		if runErr != nil && !errors.Is(runErr, engine.ErrPartialResult) {
			fmt.Printf("Error: %v\n", runErr)
			_ = eng.Close(ctx)
			os.Exit(1)
		}
		printRunSummary(res)

		if err := eng.Archive(ctx, res, archiveTarget); err != nil {
			fmt.Printf("Error: %v\n", err)
			_ = eng.Close(ctx)
			os.Exit(1)
		}
		fmt.Printf("\n[SUCCESS] Evidence archived to %s (run %s)\n", archiveTarget, res.RunID)

		_ = eng.Close(ctx)
		if errors.Is(runErr, engine.ErrPartialResult) {
			fmt.Printf("[STRICT] %d of %d files skipped\n", res.Skipped, res.FilesSeen)
			os.Exit(2)
		}
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.Flags().StringVar(&archiveTarget, "target", "", "Archive destination: directory or s3://bucket/prefix")
	archiveCmd.MarkFlagRequired("target")
}
