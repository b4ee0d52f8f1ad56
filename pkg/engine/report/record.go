// Package report renders decoded artifacts into the CSV and JSON reports.
package report

import (
	"fmt"
	"sort"

	"github.com/kmorell/pfscan/pkg/prefetch"
)

// TimeLayout is the rendering used for every timestamp in the report.
// Values are UTC.
const TimeLayout = "2006-01-02 15:04:05"

// Record matches the JSON/CSV structure, one row per decoded artifact.
type Record struct {
	SourceFile     string   `json:"source_file"`
	ExecutableName string   `json:"executable_name"`
	PrefetchHash   string   `json:"prefetch_hash"`
	FormatVersion  int      `json:"format_version"`
	RunCount       int      `json:"run_count"`
	LastRunTimes   []string `json:"last_run_times,omitempty"`
	VolumeCreated  []string `json:"volume_created,omitempty"`
	VolumeSerials  []string `json:"volume_serials,omitempty"`
	VolumePaths    []string `json:"volume_paths,omitempty"`
	AccessedFiles  []string `json:"accessed_files,omitempty"`
	TriageTags     []string `json:"triage_tags,omitempty"`
}

// FromArtifact flattens a decoded artifact into a report record.
func FromArtifact(sourceFile string, art *prefetch.Artifact) Record {
	rec := Record{
		SourceFile:     sourceFile,
		ExecutableName: art.ExecutableName,
		PrefetchHash:   fmt.Sprintf("0x%08X", art.Hash),
		FormatVersion:  int(art.Version),
		RunCount:       int(art.RunCount),
	}
	for _, t := range art.LastRunTimes {
		rec.LastRunTimes = append(rec.LastRunTimes, t.Format(TimeLayout))
	}
	for _, v := range art.Volumes {
		rec.VolumeSerials = append(rec.VolumeSerials, fmt.Sprintf("%08X", v.SerialNumber))
		if !v.CreationTime.IsZero() {
			rec.VolumeCreated = append(rec.VolumeCreated, v.CreationTime.Format(TimeLayout))
		}
		if v.DevicePath != "" {
			rec.VolumePaths = append(rec.VolumePaths, v.DevicePath)
		}
	}
	rec.AccessedFiles = append(rec.AccessedFiles, art.FileNames...)
	return rec
}

// LastRun returns the newest last-run rendering, or "" when the artifact
// never recorded an execution.
func (r Record) LastRun() string {
	if len(r.LastRunTimes) == 0 {
		return ""
	}
	return r.LastRunTimes[0]
}

// Sort orders records by source file name, the order every report is
// written in so repeated runs diff cleanly.
func Sort(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].SourceFile < records[j].SourceFile
	})
}
