package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kmorell/pfscan/pkg/engine"
	"github.com/kmorell/pfscan/pkg/engine/report"
	"github.com/kmorell/pfscan/pkg/prefetch"
)

var inspectJSON bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.pf>",
	Short: "Decode a single prefetch artifact",
	Long: `Decodes one prefetch file and prints every field. Unlike a scan,
a file that fails to decode here is a fatal error.

Example:
  pfscan inspect CALC.EXE-7A1BC2E4.pf
  pfscan inspect CALC.EXE-7A1BC2E4.pf --json`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		rec, err := engine.NewSCCADecoder().Decode(args[0], data)
		if err != nil {
			fmt.Printf("Error: failed to decode %s: %v\n", args[0], err)
			os.Exit(1)
		}

		if inspectJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(rec); err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
		printRecord(rec)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Machine-readable output")
}

func printRecord(rec report.Record) {
	fmt.Printf("Source File:    %s\n", rec.SourceFile)
	fmt.Printf("Executable:     %s\n", rec.ExecutableName)
	fmt.Printf("Prefetch Hash:  %s\n", rec.PrefetchHash)
	fmt.Printf("Format Version: %s\n", prefetch.Version(rec.FormatVersion))
	fmt.Printf("Run Count:      %d\n", rec.RunCount)

	if len(rec.LastRunTimes) > 0 {
		fmt.Println("Last Run Times:")
		for i, ts := range rec.LastRunTimes {
			fmt.Printf("  %d. %s UTC\n", i+1, ts)
		}
	} else {
		fmt.Println("Last Run Times: none recorded")
	}

	if len(rec.VolumeSerials) > 0 {
		fmt.Println("Volumes:")
		for i, serial := range rec.VolumeSerials {
			line := fmt.Sprintf("  serial %s", serial)
			if i < len(rec.VolumePaths) {
				line += "  " + rec.VolumePaths[i]
			}
			if i < len(rec.VolumeCreated) {
				line += fmt.Sprintf("  (created %s)", rec.VolumeCreated[i])
			}
			fmt.Println(line)
		}
	}

	if len(rec.AccessedFiles) > 0 {
		fmt.Printf("Accessed Files (%d):\n", len(rec.AccessedFiles))
		for _, f := range rec.AccessedFiles {
			fmt.Printf("  %s\n", f)
		}
	}

	if len(rec.TriageTags) > 0 {
		fmt.Printf("Triage Tags:    %s\n", strings.Join(rec.TriageTags, ", "))
	}
}
