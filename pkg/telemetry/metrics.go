package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Metrics bundles the run counters. They resolve against the global
// meter provider, which is a no-op unless the embedding process installs
// a real one.
type Metrics struct {
	FilesSeen metric.Int64Counter
	Parsed    metric.Int64Counter
	Skipped   metric.Int64Counter
	Tagged    metric.Int64Counter
}

// NewMetrics registers the scan counters on the named meter.
func NewMetrics(name string) (*Metrics, error) {
	meter := otel.Meter(name)

	seen, err := meter.Int64Counter("pfscan.files.seen",
		metric.WithDescription("Candidate files collected from the input directory"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	parsed, err := meter.Int64Counter("pfscan.files.parsed",
		metric.WithDescription("Artifacts decoded successfully"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	skipped, err := meter.Int64Counter("pfscan.files.skipped",
		metric.WithDescription("Files that failed to decode"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	tagged, err := meter.Int64Counter("pfscan.records.tagged",
		metric.WithDescription("Records matched by at least one triage rule"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}

	return &Metrics{FilesSeen: seen, Parsed: parsed, Skipped: skipped, Tagged: tagged}, nil
}
