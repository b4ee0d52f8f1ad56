package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kmorell/pfscan/internal/audit"
	"github.com/kmorell/pfscan/internal/swarm"
	"github.com/kmorell/pfscan/pkg/casedb"
	"github.com/kmorell/pfscan/pkg/engine/history"
	"github.com/kmorell/pfscan/pkg/engine/notifier"
	"github.com/kmorell/pfscan/pkg/engine/report"
	"github.com/kmorell/pfscan/pkg/engine/walker"
)

// RunResult summarizes one completed scan.
type RunResult struct {
	RunID      string
	StartedAt  time.Time
	ReportPath string
	JSONPath   string
	FilesSeen  int
	Parsed     int
	Skipped    int
	Tagged     int
	Duration   time.Duration
	Records    []report.Record
}

// Run executes the full pipeline and writes the report. The input
// directory is validated before anything is created, so a bad path
// leaves no output behind. In strict mode a run with skipped files
// returns the result together with ErrPartialResult.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	ctx, span := e.Tracer.Start(ctx, "Engine.Run")
	defer span.End()
	defer e.recoverPanic(ctx)

	res := &RunResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	e.Logger.Info("Starting scan",
		"run_id", res.RunID,
		"input", e.config.InputDir,
		"decoder", e.decoder.Name(),
		"workers", e.config.Workers)

	if err := e.validateInput(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := os.MkdirAll(e.config.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	records, seen, skipped, err := e.collect(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	res.FilesSeen = seen
	res.Parsed = len(records)
	res.Skipped = skipped
	res.Records = records
	for _, r := range records {
		if len(r.TriageTags) > 0 {
			res.Tagged++
		}
	}

	res.ReportPath = e.reportPath()
	if err := report.WriteCSV(records, res.ReportPath); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}
	if e.config.WriteJSON {
		res.JSONPath = e.jsonPath()
		if err := report.WriteJSON(records, res.JSONPath); err != nil {
			return nil, fmt.Errorf("failed to write json report: %w", err)
		}
	}

	e.feedSinks(ctx, res)

	res.Duration = time.Since(res.StartedAt)
	span.SetAttributes(
		attribute.Int("scan.files_seen", res.FilesSeen),
		attribute.Int("scan.parsed", res.Parsed),
		attribute.Int("scan.skipped", res.Skipped),
	)

	e.Logger.Info("Scan complete",
		"run_id", res.RunID,
		"parsed", res.Parsed,
		"skipped", res.Skipped,
		"report", res.ReportPath,
		"duration", res.Duration)

	if res.Skipped > 0 {
		span.SetAttributes(attribute.Bool("scan.partial", true))
		if e.config.StrictMode {
			e.Logger.Error("Strict Mode: failing due to skipped artifacts", "skipped", res.Skipped)
			return res, ErrPartialResult
		}
		e.Logger.Warn("Scan finished with skipped artifacts (StrictMode=false)", "skipped", res.Skipped)
	}

	return res, nil
}

// Collect decodes and triages the input directory without writing the
// report or feeding sinks. Browse and watch modes build on it.
func (e *Engine) Collect(ctx context.Context) ([]report.Record, error) {
	ctx, span := e.Tracer.Start(ctx, "Engine.Collect")
	defer span.End()

	if err := e.validateInput(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	records, _, _, err := e.collect(ctx)
	return records, err
}

func (e *Engine) validateInput() error {
	info, err := os.Stat(e.config.InputDir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidPath, e.config.InputDir)
	}
	return nil
}

func (e *Engine) collect(ctx context.Context) (records []report.Record, seen, skipped int, err error) {
	ctx, span := e.Tracer.Start(ctx, "Engine.Decode")
	defer span.End()

	files, err := walker.Collect(e.config.InputDir, walker.Options{
		Recursive:  e.config.Recursive,
		Extensions: e.config.Extensions,
	})
	if err != nil {
		return nil, 0, 0, err
	}
	seen = len(files)

	if e.config.Workers > 1 {
		records, skipped = e.decodeParallel(ctx, files)
	} else {
		records, skipped = e.decodeSequential(ctx, files)
	}

	if e.rules != nil {
		_, tspan := e.Tracer.Start(ctx, "Engine.Triage")
		for i := range records {
			records[i].TriageTags = e.rules.Evaluate(records[i])
		}
		tspan.End()
	}

	report.Sort(records)

	if e.metrics != nil {
		e.metrics.FilesSeen.Add(ctx, int64(seen))
		e.metrics.Parsed.Add(ctx, int64(len(records)))
		e.metrics.Skipped.Add(ctx, int64(skipped))
	}
	span.SetAttributes(
		attribute.Int("decode.files", seen),
		attribute.Int("decode.skipped", skipped),
	)

	return records, seen, skipped, nil
}

func (e *Engine) decodeSequential(ctx context.Context, files []string) ([]report.Record, int) {
	var records []report.Record
	skipped := 0
	for _, path := range files {
		rec, err := e.decodeOne(path)
		if err != nil {
			e.Logger.Warn("Skipping artifact", "file", filepath.Base(path), "error", err)
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped
}

func (e *Engine) decodeParallel(ctx context.Context, files []string) ([]report.Record, int) {
	pool := swarm.NewEngine(e.config.Workers, 1, e.config.Workers)
	pool.Start(ctx)

	var mu sync.Mutex
	var records []report.Record
	skipped := 0

	for _, path := range files {
		path := path
		pool.Submit(func(ctx context.Context) error {
			rec, err := e.decodeOne(path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.Logger.Warn("Skipping artifact", "file", filepath.Base(path), "error", err)
				skipped++
				return nil
			}
			records = append(records, rec)
			return nil
		})
	}

	pool.Drain()
	pool.Stop()
	return records, skipped
}

func (e *Engine) decodeOne(path string) (report.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return report.Record{}, fmt.Errorf("failed to read artifact: %w", err)
	}
	return e.decoder.Decode(path, data)
}

func (e *Engine) feedSinks(ctx context.Context, res *RunResult) {
	ctx, span := e.Tracer.Start(ctx, "Engine.Sinks")
	defer span.End()

	if e.caseDB != nil {
		if err := e.caseDB.RecordRun(casedb.Run{
			ID:         res.RunID,
			StartedAt:  res.StartedAt,
			InputDir:   e.config.InputDir,
			ReportPath: res.ReportPath,
			FilesSeen:  res.FilesSeen,
			Parsed:     res.Parsed,
			Skipped:    res.Skipped,
		}); err != nil {
			e.Logger.Warn("Failed to record run in case database", "error", err)
		}
		for _, rec := range res.Records {
			if err := e.caseDB.UpsertArtifact(res.RunID, rec); err != nil {
				e.Logger.Warn("Failed to upsert artifact", "file", rec.SourceFile, "error", err)
			}
		}
	}

	if e.History != nil {
		snap := history.Snapshot{
			RunID:       res.RunID,
			Timestamp:   res.StartedAt.Unix(),
			InputDir:    e.config.InputDir,
			OutputDir:   e.config.OutputDir,
			ReportPath:  res.ReportPath,
			FilesSeen:   res.FilesSeen,
			Parsed:      res.Parsed,
			Skipped:     res.Skipped,
			Executables: executables(res.Records),
		}
		if err := e.History.Append(snap); err != nil {
			e.Logger.Warn("Failed to append ledger snapshot", "error", err)
		}
	}

	if err := e.Notifier.SendScanReport(notifier.Summary{
		RunID:      res.RunID,
		InputDir:   e.config.InputDir,
		ReportPath: res.ReportPath,
		FilesSeen:  res.FilesSeen,
		Parsed:     res.Parsed,
		Skipped:    res.Skipped,
		TaggedHits: res.Tagged,
	}); err != nil {
		e.Logger.Warn("Failed to send Slack report", "error", err)
	}

	audit.LogAction("scan", e.config.InputDir,
		fmt.Sprintf("run=%s parsed=%d skipped=%d", res.RunID, res.Parsed, res.Skipped))
}

// executables returns the sorted unique executable names in the records.
func executables(records []report.Record) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		if r.ExecutableName == "" || seen[r.ExecutableName] {
			continue
		}
		seen[r.ExecutableName] = true
		out = append(out, r.ExecutableName)
	}
	sort.Strings(out)
	return out
}
