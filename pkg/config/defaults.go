// Package config defines default configuration for scans, watches, and archives.
package config

import "time"

// ScanConfig defines the per-run collection parameters.
type ScanConfig struct {
	// OutputName is the report file name written into the output directory.
	OutputName string
	// Recursive walks subdirectories of the input folder when true.
	Recursive bool
	// Extensions filters candidate files by suffix; empty means every regular file.
	Extensions []string
	// Workers is the decode pool size; 1 means strictly sequential.
	Workers int
}

// WatchConfig defines the live-monitor timing parameters.
type WatchConfig struct {
	// DebounceWindow is how long a path must stay quiet before it is dispatched.
	DebounceWindow time.Duration
	// SweepInterval is how often the debounce map is swept.
	SweepInterval time.Duration
}

// Defaults.
const (
	// DefaultOutputName matches the report name the tool has always produced.
	DefaultOutputName = "prefetch_data.csv"
	// DefaultJSONName is the machine-readable twin written with --json.
	DefaultJSONName = "prefetch_data.json"
	// DefaultHomeDirName is the per-user state directory under $HOME.
	DefaultHomeDirName = ".pfscan"
	// DefaultLedgerName is the run ledger file inside the state directory.
	DefaultLedgerName = "ledger.jsonl"
	// DefaultArchiveWorkers is the upload pool size for evidence archiving.
	DefaultArchiveWorkers = 4
)

// DefaultScanConfig returns the scan parameters matching the classic
// single-threaded, flat-directory behavior.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		OutputName: DefaultOutputName,
		Recursive:  false,
		Extensions: nil,
		Workers:    1,
	}
}

// DefaultWatchConfig returns the live-monitor timings.
func DefaultWatchConfig() WatchConfig {
	return WatchConfig{
		DebounceWindow: 500 * time.Millisecond,
		SweepInterval:  100 * time.Millisecond,
	}
}
