//go:build e2e

package e2e

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kmorell/pfscan/pkg/prefetch/pftest"
)

// runPfscan executes the built binary with an isolated HOME so ledger and
// audit writes never leak into the real user directory.
func runPfscan(t *testing.T, home string, args ...string) (string, int) {
	t.Helper()

	cmd := exec.Command(binPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+home)

	out, err := cmd.CombinedOutput()
	if err == nil {
		return string(out), 0
	}
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("failed to run pfscan: %v\n%s", err, out)
	}
	return string(out), exitErr.ExitCode()
}

func writeArtifact(t *testing.T, dir, name string, spec pftest.Spec) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, pftest.Build(spec), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func calcSpec() pftest.Spec {
	return pftest.Spec{
		Version:    30,
		Executable: "CALC.EXE",
		Hash:       0x7A1BC2E4,
		RunCount:   12,
		LastRuns:   []time.Time{time.Date(2024, 2, 14, 6, 1, 2, 0, time.UTC)},
		Volumes: []pftest.Volume{{
			DevicePath: `\DEVICE\HARDDISKVOLUME2`,
			Created:    time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC),
			Serial:     0xA0B1C2D3,
		}},
		FileNames: []string{`\DEVICE\HARDDISKVOLUME2\WINDOWS\SYSTEM32\CALC.EXE`},
	}
}

func cmdSpec() pftest.Spec {
	return pftest.Spec{
		Version:    23,
		Executable: "CMD.EXE",
		Hash:       0x087B4001,
		RunCount:   341,
		LastRuns:   []time.Time{time.Date(2021, 11, 30, 23, 59, 59, 0, time.UTC)},
	}
}

// readReport returns the non-empty lines of a report file.
func readReport(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("report not readable: %v", err)
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
