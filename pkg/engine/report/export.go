package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"
	"strings"
)

var csvHeader = []string{
	"SourceFile",
	"ExecutableName",
	"PrefetchHash",
	"FormatVersion",
	"RunCount",
	"LastRunTimes",
	"VolumeCreated",
	"VolumeSerials",
	"VolumePaths",
	"AccessedFiles",
	"TriageTags",
}

// WriteCSV writes the report to path, truncating any previous run's output.
// An empty record set still produces the header row.
func WriteCSV(records []Record, path string) error {
	Sort(records)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range records {
		if err := w.Write(rec.row()); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteJSON writes the machine-readable twin of the CSV report.
func WriteJSON(records []Record, path string) error {
	Sort(records)
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// row renders one CSV line. Multi-valued fields are joined with "; ",
// which encoding/csv leaves unquoted.
func (r Record) row() []string {
	return []string{
		r.SourceFile,
		r.ExecutableName,
		r.PrefetchHash,
		strconv.Itoa(r.FormatVersion),
		strconv.Itoa(r.RunCount),
		strings.Join(r.LastRunTimes, "; "),
		strings.Join(r.VolumeCreated, "; "),
		strings.Join(r.VolumeSerials, "; "),
		strings.Join(r.VolumePaths, "; "),
		strings.Join(r.AccessedFiles, "; "),
		strings.Join(r.TriageTags, "; "),
	}
}
