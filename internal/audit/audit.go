// Package audit appends one line per scan action to ~/.pfscan/audit.log.
// Logging is best effort; a missing home directory or unwritable file
// must never break a scan.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kmorell/pfscan/pkg/config"
)

// LogAction records one action line, e.g.
//
//	[2026-01-12T09:30:41Z] scan /evidence/Prefetch - parsed=10 skipped=2
func LogAction(action, target, detail string) {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	dir := filepath.Join(home, config.DefaultHomeDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return
	}

	f, err := os.OpenFile(filepath.Join(dir, "audit.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	stamp := time.Now().UTC().Format(time.RFC3339)
	fmt.Fprintf(f, "[%s] %s %s - %s\n", stamp, action, target, detail)
}
