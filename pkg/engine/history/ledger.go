// Package history keeps the append-only ledger of completed runs.
package history

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/kmorell/pfscan/pkg/config"
)

// Snapshot records one completed scan.
type Snapshot struct {
	RunID      string `json:"run_id"`
	Timestamp  int64  `json:"timestamp"`
	InputDir   string `json:"input_dir"`
	OutputDir  string `json:"output_dir"`
	ReportPath string `json:"report_path"`
	FilesSeen  int    `json:"files_seen"`
	Parsed     int    `json:"parsed"`
	Skipped    int    `json:"skipped"`
	// Executables is the sorted, deduplicated list of executable names seen
	// in this run. Diff uses it to spot drift between runs.
	Executables []string `json:"executables,omitempty"`
}

// Backend defines the storage interface for snapshots.
type Backend interface {
	Append(s Snapshot) error
	Load(n int) ([]Snapshot, error)
}

// Client manages the run ledger.
type Client struct {
	backend Backend
}

// NewClient initializes a history client. Defaults to FileBackend.
func NewClient(backend Backend) *Client {
	if backend == nil {
		backend = &FileBackend{}
	}
	return &Client{backend: backend}
}

// Append records a new snapshot.
func (c *Client) Append(s Snapshot) error {
	return c.backend.Append(s)
}

// LoadWindow retrieves up to the n most recent snapshots, oldest first.
func (c *Client) LoadWindow(n int) ([]Snapshot, error) {
	return c.backend.Load(n)
}

// NewLocalBackend creates a file-based backend at the specified path.
// An empty path resolves to the default ledger location at first use.
func NewLocalBackend(path string) *FileBackend {
	return &FileBackend{Path: path}
}

// FileBackend stores snapshots as JSON lines, one run per line.
type FileBackend struct {
	Path string
}

func (b *FileBackend) resolve() (string, error) {
	if b.Path != "" {
		return b.Path, nil
	}
	return GetLedgerPath()
}

func (b *FileBackend) Append(s Snapshot) error {
	path, err := b.resolve()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	// Encode terminates each value with a newline, which is the whole
	// file format.
	return json.NewEncoder(f).Encode(s)
}

func (b *FileBackend) Load(n int) ([]Snapshot, error) {
	path, err := b.resolve()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var snaps []Snapshot
	sc := bufio.NewScanner(f)
	// A snapshot of a large evidence set can outgrow the default token
	// size once the executable list is long.
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var s Snapshot
		// Damaged lines are dropped rather than poisoning the ledger.
		if json.Unmarshal(sc.Bytes(), &s) != nil {
			continue
		}
		snaps = append(snaps, s)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return tail(snaps, n), nil
}

// tail keeps the newest n snapshots, preserving oldest-first order.
func tail(snaps []Snapshot, n int) []Snapshot {
	if len(snaps) > n {
		return snaps[len(snaps)-n:]
	}
	return snaps
}

// GetLedgerPath provides the default local ledger location.
func GetLedgerPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, config.DefaultHomeDirName, config.DefaultLedgerName), nil
}
