//go:build e2e

package e2e

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kmorell/pfscan/pkg/prefetch/pftest"
)

func TestScanWritesSortedReport(t *testing.T) {
	home := t.TempDir()
	input := t.TempDir()
	output := filepath.Join(t.TempDir(), "out")

	writeArtifact(t, input, "CMD.EXE-087B4001.pf", cmdSpec())
	writeArtifact(t, input, "CALC.EXE-7A1BC2E4.pf", calcSpec())

	out, code := runPfscan(t, home, input, output)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, out)
	}

	lines := readReport(t, filepath.Join(output, "prefetch_data.csv"))
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines:\n%s", len(lines), strings.Join(lines, "\n"))
	}
	if !strings.HasPrefix(lines[0], "SourceFile,ExecutableName,") {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], "CALC.EXE-7A1BC2E4.pf,CALC.EXE,") {
		t.Fatalf("rows not sorted by source file: %s", lines[1])
	}
	if !strings.Contains(lines[2], "CMD.EXE") {
		t.Fatalf("missing second record: %s", lines[2])
	}
}

func TestScanOverwritesPreviousReport(t *testing.T) {
	home := t.TempDir()
	input := t.TempDir()
	output := filepath.Join(t.TempDir(), "out")

	calc := writeArtifact(t, input, "CALC.EXE-7A1BC2E4.pf", calcSpec())
	writeArtifact(t, input, "CMD.EXE-087B4001.pf", cmdSpec())

	if out, code := runPfscan(t, home, input, output); code != 0 {
		t.Fatalf("exit %d: %s", code, out)
	}
	if err := os.Remove(calc); err != nil {
		t.Fatal(err)
	}
	if out, code := runPfscan(t, home, input, output); code != 0 {
		t.Fatalf("exit %d: %s", code, out)
	}

	lines := readReport(t, filepath.Join(output, "prefetch_data.csv"))
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row after rescan, got %d lines", len(lines))
	}
	if strings.Contains(strings.Join(lines, "\n"), "CALC.EXE") {
		t.Fatal("stale record survived the rescan")
	}
}

func TestScanInvalidInputPath(t *testing.T) {
	home := t.TempDir()
	output := filepath.Join(t.TempDir(), "out")

	out, code := runPfscan(t, home, filepath.Join(t.TempDir(), "missing"), output)
	if code == 0 {
		t.Fatalf("expected non-zero exit, got 0:\n%s", out)
	}
	if !strings.Contains(out, "invalid input path") {
		t.Fatalf("expected a path error, got:\n%s", out)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Fatal("output directory must not be created for an invalid input")
	}
}

func TestScanEmptyInputDir(t *testing.T) {
	home := t.TempDir()
	output := filepath.Join(t.TempDir(), "out")

	out, code := runPfscan(t, home, t.TempDir(), output)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, out)
	}

	lines := readReport(t, filepath.Join(output, "prefetch_data.csv"))
	if len(lines) != 1 {
		t.Fatalf("expected a header-only report, got %d lines", len(lines))
	}
}

func TestScanSkipsUndecodableFiles(t *testing.T) {
	home := t.TempDir()
	input := t.TempDir()
	output := filepath.Join(t.TempDir(), "out")

	writeArtifact(t, input, "CALC.EXE-7A1BC2E4.pf", calcSpec())
	if err := os.WriteFile(filepath.Join(input, "NTOSBOOT-B00DFAAD.pf"), pftest.Compressed(), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(input, "notes.txt"), []byte("not prefetch"), 0644); err != nil {
		t.Fatal(err)
	}

	out, code := runPfscan(t, home, input, output)
	if code != 0 {
		t.Fatalf("skips must not change the exit code, got %d: %s", code, out)
	}
	if !strings.Contains(out, "Skipping artifact") {
		t.Fatalf("expected skip log lines, got:\n%s", out)
	}

	lines := readReport(t, filepath.Join(output, "prefetch_data.csv"))
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
}

func TestScanStrictMode(t *testing.T) {
	home := t.TempDir()
	input := t.TempDir()
	output := filepath.Join(t.TempDir(), "out")

	writeArtifact(t, input, "CALC.EXE-7A1BC2E4.pf", calcSpec())
	if err := os.WriteFile(filepath.Join(input, "corrupt.pf"), []byte{0x00, 0x01}, 0644); err != nil {
		t.Fatal(err)
	}

	out, code := runPfscan(t, home, input, output, "--strict")
	if code != 2 {
		t.Fatalf("expected exit 2 in strict mode, got %d:\n%s", code, out)
	}

	// The report is still written in full before the strict exit.
	lines := readReport(t, filepath.Join(output, "prefetch_data.csv"))
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
}

func TestHelpPrintsUsage(t *testing.T) {
	out, code := runPfscan(t, t.TempDir(), "--help")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, out)
	}
	if !strings.Contains(out, "USAGE") || !strings.Contains(out, "pfscan") {
		t.Fatalf("unexpected help output:\n%s", out)
	}
}

func TestInspectArtifact(t *testing.T) {
	home := t.TempDir()
	input := t.TempDir()
	path := writeArtifact(t, input, "CALC.EXE-7A1BC2E4.pf", calcSpec())

	out, code := runPfscan(t, home, "inspect", path)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, out)
	}
	for _, want := range []string{"CALC.EXE", "0x7A1BC2E4", "Run Count:      12", "Windows 10/11"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in inspect output:\n%s", want, out)
		}
	}

	// A decode failure is fatal for inspect, unlike a scan.
	corrupt := filepath.Join(input, "corrupt.pf")
	if err := os.WriteFile(corrupt, []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	out, code = runPfscan(t, home, "inspect", corrupt)
	if code == 0 {
		t.Fatalf("expected non-zero exit for a corrupt file:\n%s", out)
	}
	if !strings.Contains(out, "failed to decode") {
		t.Fatalf("expected a decode error, got:\n%s", out)
	}
}

func TestRunsShowsDrift(t *testing.T) {
	home := t.TempDir()
	input := t.TempDir()
	output := filepath.Join(t.TempDir(), "out")

	writeArtifact(t, input, "CALC.EXE-7A1BC2E4.pf", calcSpec())
	if out, code := runPfscan(t, home, input, output); code != 0 {
		t.Fatalf("exit %d: %s", code, out)
	}

	writeArtifact(t, input, "CMD.EXE-087B4001.pf", cmdSpec())
	if out, code := runPfscan(t, home, input, output); code != 0 {
		t.Fatalf("exit %d: %s", code, out)
	}

	out, code := runPfscan(t, home, "runs")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, out)
	}
	if !strings.Contains(out, "RUN") || !strings.Contains(out, "Drift") {
		t.Fatalf("expected ledger table and drift section:\n%s", out)
	}
	if !strings.Contains(out, "new:  CMD.EXE") {
		t.Fatalf("expected CMD.EXE to show as new:\n%s", out)
	}
}

func TestArchivePreservesEvidence(t *testing.T) {
	home := t.TempDir()
	input := t.TempDir()
	output := filepath.Join(t.TempDir(), "out")
	target := t.TempDir()

	writeArtifact(t, input, "CALC.EXE-7A1BC2E4.pf", calcSpec())

	out, code := runPfscan(t, home, "archive", input, output, "--target", target)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, out)
	}
	if !strings.Contains(out, "Evidence archived") {
		t.Fatalf("expected archive confirmation:\n%s", out)
	}

	// One run directory, keyed by run ID, holding artifacts + manifest.
	entries, err := os.ReadDir(target)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected exactly one run directory, got %d (%v)", len(entries), err)
	}
	runDir := filepath.Join(target, entries[0].Name())

	for _, want := range []string{"CALC.EXE-7A1BC2E4.pf", "prefetch_data.csv", "manifest.json"} {
		if _, err := os.Stat(filepath.Join(runDir, want)); err != nil {
			t.Fatalf("missing archived file %s: %v", want, err)
		}
	}
}
