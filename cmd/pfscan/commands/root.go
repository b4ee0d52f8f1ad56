package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kmorell/pfscan/pkg/engine"
	"github.com/kmorell/pfscan/pkg/version"
)

var (
	cfgFile string
	config  engine.Config
)

var rootCmd = &cobra.Command{
	Use:   "pfscan <input_folder> <output_folder>",
	Short: "Windows Prefetch triage scanner",
	Long: `pfscan - Windows Prefetch Triage Scanner

Walks a directory of prefetch artifacts, decodes each one, and writes a
flat CSV report for forensic triage.`,
	Version: version.Current,
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		config.InputDir = args[0]
		config.OutputDir = args[1]
		runScan(cmd.Context())
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runScan(ctx context.Context) {
	eng, err := engine.New(ctx, engine.WithConfig(config))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	res, runErr := eng.Run(ctx)
	_ = eng.Close(ctx)

	switch {
	case errors.Is(runErr, engine.ErrPartialResult):
		printRunSummary(res)
		// Exit 2 keeps partial results distinguishable from hard failures.
		fmt.Printf("\n[STRICT] %d of %d files skipped\n", res.Skipped, res.FilesSeen)
		os.Exit(2)
	case runErr != nil:
		fmt.Printf("Error: %v\n", runErr)
		os.Exit(1)
	}

	printRunSummary(res)
}

func printRunSummary(res *engine.RunResult) {
	fmt.Printf("\n[DONE] Parsed %d/%d artifacts (%d skipped) in %s\n",
		res.Parsed, res.FilesSeen, res.Skipped, res.Duration.Round(time.Millisecond))
	fmt.Printf("Report: %s\n", res.ReportPath)
	if res.JSONPath != "" {
		fmt.Printf("JSON:   %s\n", res.JSONPath)
	}
	if res.Tagged > 0 {
		fmt.Printf("[TRIAGE] %d records tagged\n", res.Tagged)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent Flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ~/.pfscan.yaml)")
	rootCmd.PersistentFlags().BoolVar(&config.Recursive, "recursive", false, "Walk subdirectories of the input folder")
	rootCmd.PersistentFlags().StringSliceVar(&config.Extensions, "ext", nil, "Extension filter, repeatable (empty tries every file)")
	rootCmd.PersistentFlags().StringVar(&config.OutputName, "output-name", "prefetch_data.csv", "Report file name")
	rootCmd.PersistentFlags().IntVar(&config.Workers, "workers", 1, "Decode concurrency (1 = sequential)")
	rootCmd.PersistentFlags().BoolVar(&config.StrictMode, "strict", false, "Non-zero exit when any file was skipped")
	rootCmd.PersistentFlags().BoolVar(&config.WriteJSON, "json", false, "Also write the report as JSON")
	rootCmd.PersistentFlags().StringVar(&config.RulesFile, "rules", "", "Triage rules YAML file")
	rootCmd.PersistentFlags().StringVar(&config.CaseDBPath, "case-db", "", "SQLite case database path")
	rootCmd.PersistentFlags().StringVar(&config.LedgerURL, "ledger", "", "Run ledger path or s3://bucket/key (default ~/.pfscan/ledger.jsonl)")
	rootCmd.PersistentFlags().BoolVar(&config.NoLedger, "no-ledger", false, "Disable the run ledger")
	rootCmd.PersistentFlags().StringVar(&config.Webhook, "webhook", "", "Slack webhook URL for scan reports")
	rootCmd.PersistentFlags().BoolVar(&config.JsonLogs, "json-logs", false, "Structured JSON logs on stderr")
	rootCmd.PersistentFlags().BoolVarP(&config.Verbose, "verbose", "v", false, "Debug-level logging")

	// Hidden Flags
	rootCmd.PersistentFlags().StringVar(&config.OtelEndpoint, "otel-endpoint", "", "OTLP/HTTP trace endpoint")
	rootCmd.PersistentFlags().BoolVar(&config.SkipTelemetry, "skip-telemetry", false, "Disable trace export")
	rootCmd.PersistentFlags().MarkHidden("otel-endpoint")
	rootCmd.PersistentFlags().MarkHidden("skip-telemetry")

	// Config-file keys mirror the flag names.
	for _, key := range []string{"recursive", "ext", "output-name", "workers", "rules", "case-db", "ledger", "webhook", "json-logs"} {
		viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key))
	}

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		renderHelp(cmd)
	})
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.SetConfigFile(filepath.Join(home, ".pfscan.yaml"))
			viper.SetConfigType("yaml")
		}
	}
	viper.SetEnvPrefix("PFSCAN")
	viper.AutomaticEnv()
	viper.ReadInConfig()

	// Flags win; the file and PFSCAN_* env fill in the rest.
	applyViperOverrides()
}

func applyViperOverrides() {
	flags := rootCmd.PersistentFlags()
	setString := func(key string, dst *string) {
		if !flags.Changed(key) && viper.IsSet(key) {
			*dst = viper.GetString(key)
		}
	}
	setString("output-name", &config.OutputName)
	setString("rules", &config.RulesFile)
	setString("case-db", &config.CaseDBPath)
	setString("ledger", &config.LedgerURL)
	setString("webhook", &config.Webhook)
	if !flags.Changed("recursive") && viper.IsSet("recursive") {
		config.Recursive = viper.GetBool("recursive")
	}
	if !flags.Changed("json-logs") && viper.IsSet("json-logs") {
		config.JsonLogs = viper.GetBool("json-logs")
	}
	if !flags.Changed("workers") && viper.IsSet("workers") {
		config.Workers = viper.GetInt("workers")
	}
	if !flags.Changed("ext") && viper.IsSet("ext") {
		config.Extensions = viper.GetStringSlice("ext")
	}
}

func renderHelp(cmd *cobra.Command) {
	// Same palette as the browse TUI.
	section := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00D7D7")).
		MarginBottom(1)
	faint := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#626262"))

	fmt.Println(section.Render(fmt.Sprintf("PFSCAN %s", version.Current)))
	fmt.Println("Windows Prefetch decoder and triage reporter.")

	fmt.Println(section.Render("USAGE"))
	fmt.Printf("  %s\n\n", cmd.UseLine())

	fmt.Println(section.Render("COMMANDS"))
	for _, c := range cmd.Commands() {
		if !c.IsAvailableCommand() {
			continue
		}
		fmt.Printf("  %-12s %s\n", c.Name(), c.Short)
	}
	fmt.Println()

	fmt.Println(section.Render("EXAMPLES"))
	fmt.Println("  pfscan /evidence/Prefetch ./out                 # Scan to ./out/prefetch_data.csv")
	fmt.Println("  pfscan /evidence/Prefetch ./out --rules r.yaml  # Scan with triage rules")
	fmt.Println("  pfscan inspect CALC.EXE-7A1BC2E4.pf             # Decode one artifact")
	fmt.Println("  pfscan browse /evidence/Prefetch                # Interactive browser")
	fmt.Println()

	fmt.Println(section.Render("FLAGS"))
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		line := fmt.Sprintf("  --%-15s %s", f.Name, f.Usage)
		switch f.DefValue {
		case "", "false", "0", "[]":
		default:
			line += fmt.Sprintf(" (default %s)", f.DefValue)
		}
		fmt.Println(faint.Render(line))
	})
	fmt.Println()
}
