package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kmorell/pfscan/internal/audit"
	"github.com/kmorell/pfscan/internal/swarm"
	internalconfig "github.com/kmorell/pfscan/pkg/config"
	"github.com/kmorell/pfscan/pkg/engine/custody"
	"github.com/kmorell/pfscan/pkg/engine/walker"
	"github.com/kmorell/pfscan/pkg/storage"
)

// Archive preserves the evidence of a completed run: every input
// artifact, the report files, and a chain-of-custody manifest are
// uploaded under <prefix>/<runID>/ in the target store. Individual
// upload failures do not stop the rest; they are reported at the end.
func (e *Engine) Archive(ctx context.Context, res *RunResult, target string) error {
	ctx, span := e.Tracer.Start(ctx, "Engine.Archive")
	defer span.End()

	store, prefix := e.store, e.storePrefix
	if store == nil {
		var err error
		store, prefix, err = storage.FromURL(ctx, target)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	files, err := walker.Collect(e.config.InputDir, walker.Options{
		Recursive:  e.config.Recursive,
		Extensions: e.config.Extensions,
	})
	if err != nil {
		return err
	}
	for _, p := range []string{res.ReportPath, res.JSONPath} {
		if p != "" {
			files = append(files, p)
		}
	}

	collector := custody.ResolveCollector(ctx)
	manifest, err := custody.Build(res.RunID, collector, files)
	if err != nil {
		return fmt.Errorf("failed to build custody manifest: %w", err)
	}

	e.Logger.Info("Archiving evidence",
		"run_id", res.RunID,
		"target", target,
		"files", len(files),
		"collector", collector)

	pool := swarm.NewEngine(internalconfig.DefaultArchiveWorkers, 1, internalconfig.DefaultArchiveWorkers*4)
	pool.Start(ctx)

	for _, file := range files {
		file := file
		pool.Submit(func(ctx context.Context) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}
			if err := store.Put(ctx, e.archiveKey(prefix, res.RunID, file), data); err != nil {
				return fmt.Errorf("failed to upload %s: %w", filepath.Base(file), err)
			}
			return nil
		})
	}

	pool.Drain()
	pool.Stop()

	stats := pool.GetStats()
	span.SetAttributes(
		attribute.Int64("archive.uploaded", stats.TasksCompleted),
		attribute.Int64("archive.failed", stats.TasksFailed),
		attribute.Int64("archive.throttled", stats.Throttled),
	)
	if stats.Throttled > 0 {
		e.Logger.Debug("Uploads were throttled", "count", stats.Throttled)
	}

	for _, uploadErr := range pool.Errors() {
		e.Logger.Warn("Failed to archive file", "error", uploadErr)
	}

	// The manifest goes up last so its presence marks a complete set.
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	manifestKey := path.Join(prefix, res.RunID, "manifest.json")
	if err := store.Put(ctx, manifestKey, data); err != nil {
		return fmt.Errorf("failed to upload manifest: %w", err)
	}

	audit.LogAction("archive", target,
		fmt.Sprintf("run=%s uploaded=%d failed=%d", res.RunID, stats.TasksCompleted, stats.TasksFailed))

	if failed := stats.TasksFailed; failed > 0 {
		return fmt.Errorf("archive finished with %d of %d uploads failed", failed, len(files))
	}

	e.Logger.Info("Archive complete", "run_id", res.RunID, "files", len(files), "key", manifestKey)
	return nil
}

// archiveKey maps an input file to its store key, keeping the path
// relative to the input directory so recursive layouts survive.
func (e *Engine) archiveKey(prefix, runID, file string) string {
	rel, err := filepath.Rel(e.config.InputDir, file)
	if err != nil || rel == "" || rel[0] == '.' {
		rel = filepath.Base(file)
	}
	return path.Join(prefix, runID, filepath.ToSlash(rel))
}
