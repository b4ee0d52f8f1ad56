package engine_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmorell/pfscan/pkg/casedb"
	"github.com/kmorell/pfscan/pkg/engine"
	"github.com/kmorell/pfscan/pkg/engine/custody"
	"github.com/kmorell/pfscan/pkg/engine/history"
	"github.com/kmorell/pfscan/pkg/engine/report"
	"github.com/kmorell/pfscan/pkg/prefetch/pftest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(t *testing.T, cfg engine.Config, opts ...engine.Option) *engine.Engine {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cfg.SkipTelemetry = true
	all := append([]engine.Option{engine.WithConfig(cfg), engine.WithLogger(quietLogger())}, opts...)
	eng, err := engine.New(context.Background(), all...)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close(context.Background()) })
	return eng
}

func writeArtifact(t *testing.T, dir, name string, spec pftest.Spec) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, pftest.Build(spec), 0644))
	return p
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
			Created:    time.Date(2023, 1, 10, 8, 0, 0, 0, time.UTC),
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

func TestRunWritesSortedReport(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeArtifact(t, in, "CMD.EXE-087B4001.pf", cmdSpec())
	writeArtifact(t, in, "CALC.EXE-7A1BC2E4.pf", calcSpec())

	eng := newEngine(t, engine.Config{InputDir: in, OutputDir: out})
	res, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 2, res.FilesSeen)
	assert.Equal(t, 2, res.Parsed)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, filepath.Join(out, "prefetch_data.csv"), res.ReportPath)

	data, err := os.ReadFile(res.ReportPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "SourceFile,ExecutableName"))
	assert.Contains(t, lines[1], "CALC.EXE-7A1BC2E4.pf")
	assert.Contains(t, lines[1], "0x7A1BC2E4")
	assert.Contains(t, lines[2], "CMD.EXE-087B4001.pf")
	assert.Contains(t, lines[2], "341")
}

func TestRunInvalidInputCreatesNothing(t *testing.T) {
	out := filepath.Join(t.TempDir(), "never-created")
	eng := newEngine(t, engine.Config{
		InputDir:  filepath.Join(t.TempDir(), "missing"),
		OutputDir: out,
	})

	res, err := eng.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrInvalidPath)
	assert.Nil(t, res)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "output dir must not be created on invalid input")
}

func TestRunInputFileNotDirectory(t *testing.T) {
	in := filepath.Join(t.TempDir(), "file.pf")
	require.NoError(t, os.WriteFile(in, []byte("x"), 0644))

	eng := newEngine(t, engine.Config{InputDir: in, OutputDir: t.TempDir()})
	_, err := eng.Run(context.Background())
	assert.ErrorIs(t, err, engine.ErrInvalidPath)
}

func TestRunEmptyDirWritesHeaderOnly(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	eng := newEngine(t, engine.Config{InputDir: in, OutputDir: out})

	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.FilesSeen)
	assert.Equal(t, 0, res.Parsed)

	data, err := os.ReadFile(res.ReportPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.Len(t, lines, 1, "empty scan still writes the header")
}

func TestRunSkipsUndecodableFiles(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeArtifact(t, in, "CALC.EXE-7A1BC2E4.pf", calcSpec())
	require.NoError(t, os.WriteFile(filepath.Join(in, "NTOSBOOT-B00DFAAD.pf"), pftest.Compressed(), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "garbage.pf"), []byte("not prefetch at all"), 0644))

	eng := newEngine(t, engine.Config{InputDir: in, OutputDir: out})
	res, err := eng.Run(context.Background())
	require.NoError(t, err, "skips are not fatal outside strict mode")

	assert.Equal(t, 3, res.FilesSeen)
	assert.Equal(t, 1, res.Parsed)
	assert.Equal(t, 2, res.Skipped)

	data, err := os.ReadFile(res.ReportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "CALC.EXE")
	assert.NotContains(t, string(data), "NTOSBOOT")
}

func TestRunStrictModeReportsPartial(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeArtifact(t, in, "CALC.EXE-7A1BC2E4.pf", calcSpec())
	require.NoError(t, os.WriteFile(filepath.Join(in, "broken.pf"), []byte{0x11, 0x00}, 0644))

	eng := newEngine(t, engine.Config{InputDir: in, OutputDir: out, StrictMode: true})
	res, err := eng.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrPartialResult)
	require.NotNil(t, res, "partial result still carries the run summary")
	assert.Equal(t, 1, res.Skipped)

	// The report is written even when strict mode fails the run.
	data, readErr := os.ReadFile(res.ReportPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "CALC.EXE")
}

func TestRunExtensionFilter(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeArtifact(t, in, "CALC.EXE-7A1BC2E4.pf", calcSpec())
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.txt"), []byte("investigator notes"), 0644))

	eng := newEngine(t, engine.Config{InputDir: in, OutputDir: out, Extensions: []string{".pf"}})
	res, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.FilesSeen, "non-matching extensions are never candidates")
	assert.Equal(t, 0, res.Skipped)
}

func TestRunParallelWorkers(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	for i := 0; i < 16; i++ {
		spec := calcSpec()
		spec.Executable = "TOOL" + string(rune('A'+i)) + ".EXE"
		spec.Hash = uint32(0x1000 + i)
		writeArtifact(t, in, spec.Executable+".pf", spec)
	}

	eng := newEngine(t, engine.Config{InputDir: in, OutputDir: out, Workers: 4})
	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 16, res.Parsed)

	data, err := os.ReadFile(res.ReportPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 17)
	// Rows stay sorted regardless of decode order.
	assert.Contains(t, lines[1], "TOOLA.EXE")
	assert.Contains(t, lines[16], "TOOLP.EXE")
}

func TestRunAppliesTriageRules(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeArtifact(t, in, "CALC.EXE-7A1BC2E4.pf", calcSpec())
	writeArtifact(t, in, "CMD.EXE-087B4001.pf", cmdSpec())

	rules := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(rules, []byte(`rules:
  - id: frequent-flyer
    description: launched more than 100 times
    expr: run_count > 100
    tag: frequent-flyer
`), 0644))

	eng := newEngine(t, engine.Config{InputDir: in, OutputDir: out, RulesFile: rules})
	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Tagged)

	data, err := os.ReadFile(res.ReportPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.NotContains(t, lines[1], "frequent-flyer", "CALC ran 12 times")
	assert.Contains(t, lines[2], "frequent-flyer", "CMD ran 341 times")
}

func TestRunBadRulesFileFailsConstruction(t *testing.T) {
	rules := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(rules, []byte(`rules:
  - id: broken
    expr: run_count >>> 1
`), 0644))

	t.Setenv("HOME", t.TempDir())
	_, err := engine.New(context.Background(),
		engine.WithConfig(engine.Config{
			InputDir:      t.TempDir(),
			OutputDir:     t.TempDir(),
			RulesFile:     rules,
			SkipTelemetry: true,
		}),
		engine.WithLogger(quietLogger()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load triage rules")
}

func TestRunWritesJSONReport(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeArtifact(t, in, "CALC.EXE-7A1BC2E4.pf", calcSpec())

	eng := newEngine(t, engine.Config{InputDir: in, OutputDir: out, WriteJSON: true})
	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "prefetch_data.json"), res.JSONPath)

	data, err := os.ReadFile(res.JSONPath)
	require.NoError(t, err)
	var records []report.Record
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "CALC.EXE", records[0].ExecutableName)
	assert.Equal(t, 12, records[0].RunCount)
}

func TestRunAppendsLedgerSnapshot(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeArtifact(t, in, "CALC.EXE-7A1BC2E4.pf", calcSpec())
	writeArtifact(t, in, "CMD.EXE-087B4001.pf", cmdSpec())

	mem := &history.MemoryBackend{}
	eng := newEngine(t, engine.Config{InputDir: in, OutputDir: out},
		engine.WithHistory(history.NewClient(mem)))

	res, err := eng.Run(context.Background())
	require.NoError(t, err)

	snaps, err := mem.Load(5)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, res.RunID, snaps[0].RunID)
	assert.Equal(t, 2, snaps[0].Parsed)
	assert.Equal(t, []string{"CALC.EXE", "CMD.EXE"}, snaps[0].Executables)
}

func TestRunFeedsCaseDatabase(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeArtifact(t, in, "CALC.EXE-7A1BC2E4.pf", calcSpec())
	dbPath := filepath.Join(t.TempDir(), "case.db")

	eng := newEngine(t, engine.Config{InputDir: in, OutputDir: out, CaseDBPath: dbPath})
	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, eng.Close(context.Background()))

	db, err := casedb.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	runs, err := db.Runs(5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
	assert.Equal(t, 1, runs[0].Parsed)

	n, err := db.CountArtifacts()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunNotifiesWebhook(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
	}))
	defer srv.Close()

	in, out := t.TempDir(), t.TempDir()
	writeArtifact(t, in, "CALC.EXE-7A1BC2E4.pf", calcSpec())

	eng := newEngine(t, engine.Config{InputDir: in, OutputDir: out, Webhook: srv.URL})
	_, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Contains(t, body, "Prefetch Triage Report")
	assert.Contains(t, body, in)
}

func TestCollectWritesNothing(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "untouched")
	writeArtifact(t, in, "CMD.EXE-087B4001.pf", cmdSpec())
	writeArtifact(t, in, "CALC.EXE-7A1BC2E4.pf", calcSpec())

	eng := newEngine(t, engine.Config{InputDir: in, OutputDir: out})
	records, err := eng.Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "CALC.EXE-7A1BC2E4.pf", records[0].SourceFile)
	assert.Equal(t, "CMD.EXE-087B4001.pf", records[1].SourceFile)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "Collect must not create the output dir")
}

type failingDecoder struct{}

func (failingDecoder) Name() string { return "failing" }
func (failingDecoder) Decode(path string, data []byte) (report.Record, error) {
	return report.Record{}, os.ErrInvalid
}

func TestWithDecoderOverride(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeArtifact(t, in, "CALC.EXE-7A1BC2E4.pf", calcSpec())

	eng := newEngine(t, engine.Config{InputDir: in, OutputDir: out},
		engine.WithDecoder(failingDecoder{}))
	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Parsed)
	assert.Equal(t, 1, res.Skipped)
}

func TestRunOverwritesPreviousReport(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	calc := writeArtifact(t, in, "CALC.EXE-7A1BC2E4.pf", calcSpec())
	writeArtifact(t, in, "CMD.EXE-087B4001.pf", cmdSpec())

	eng := newEngine(t, engine.Config{InputDir: in, OutputDir: out})
	_, err := eng.Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(calc))
	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Parsed)

	data, err := os.ReadFile(res.ReportPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "CALC.EXE", "stale rows must not survive a rewrite")
}

func TestArchiveToLocalStore(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeArtifact(t, in, "CALC.EXE-7A1BC2E4.pf", calcSpec())
	writeArtifact(t, in, "CMD.EXE-087B4001.pf", cmdSpec())
	target := t.TempDir()

	eng := newEngine(t, engine.Config{InputDir: in, OutputDir: out})
	res, err := eng.Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, eng.Archive(context.Background(), res, target))

	runDir := filepath.Join(target, res.RunID)
	for _, name := range []string{"CALC.EXE-7A1BC2E4.pf", "CMD.EXE-087B4001.pf", "prefetch_data.csv", "manifest.json"} {
		_, statErr := os.Stat(filepath.Join(runDir, name))
		assert.NoError(t, statErr, "expected %s in archive", name)
	}

	data, err := os.ReadFile(filepath.Join(runDir, "manifest.json"))
	require.NoError(t, err)
	var manifest custody.Manifest
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.Equal(t, res.RunID, manifest.RunID)
	assert.Len(t, manifest.Entries, 3, "two artifacts plus the report")

	mismatched, err := manifest.Verify()
	require.NoError(t, err)
	assert.Empty(t, mismatched)
}
