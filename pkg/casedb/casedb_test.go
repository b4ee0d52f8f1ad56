package casedb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmorell/pfscan/pkg/engine/report"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "case", "evidence.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndListRuns(t *testing.T) {
	db := openTestDB(t)

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		require.NoError(t, db.RecordRun(Run{
			ID:        id,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
			InputDir:  "/evidence/Prefetch",
			FilesSeen: 10 + i,
			Parsed:    9 + i,
			Skipped:   1,
		}))
	}

	runs, err := db.Runs(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-c", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)
	assert.Equal(t, base.Add(2*time.Hour), runs[0].StartedAt)
	assert.Equal(t, 12, runs[0].FilesSeen)
}

func TestUpsertArtifactAccumulates(t *testing.T) {
	db := openTestDB(t)

	rec := report.Record{
		SourceFile:     "CALC.EXE-7A1BC2E4.pf",
		ExecutableName: "CALC.EXE",
		PrefetchHash:   "0x7A1BC2E4",
		FormatVersion:  30,
		RunCount:       3,
		LastRunTimes:   []string{"2024-01-01 10:00:00"},
		VolumeSerials:  []string{"A0B1C2D3"},
	}
	require.NoError(t, db.UpsertArtifact("run-a", rec))

	// Second run sees the same file with a higher run count.
	rec.RunCount = 9
	rec.LastRunTimes = []string{"2024-02-02 11:00:00"}
	rec.TriageTags = []string{"frequent-flyer"}
	require.NoError(t, db.UpsertArtifact("run-b", rec))

	arts, err := db.ArtifactsByExecutable("CALC.EXE")
	require.NoError(t, err)
	require.Len(t, arts, 1)

	a := arts[0]
	assert.Equal(t, 9, a.RunCount)
	assert.Equal(t, "2024-02-02 11:00:00", a.LastRun)
	assert.Equal(t, "frequent-flyer", a.TriageTags)
	assert.Equal(t, "run-a", a.FirstSeenRun, "first seen run must survive upserts")
	assert.Equal(t, "run-b", a.LastSeenRun)

	n, err := db.CountArtifacts()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestArtifactsByExecutableFiltersAndSorts(t *testing.T) {
	db := openTestDB(t)

	for _, src := range []string{"CMD.EXE-22222222.pf", "CMD.EXE-11111111.pf", "CALC.EXE-33333333.pf"} {
		exe := src[:len(src)-12]
		require.NoError(t, db.UpsertArtifact("run-a", report.Record{
			SourceFile:     src,
			ExecutableName: exe,
		}))
	}

	arts, err := db.ArtifactsByExecutable("CMD.EXE")
	require.NoError(t, err)
	require.Len(t, arts, 2)
	assert.Equal(t, "CMD.EXE-11111111.pf", arts[0].SourceFile)
	assert.Equal(t, "CMD.EXE-22222222.pf", arts[1].SourceFile)
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "case.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopening an existing file must not fail on CREATE IF NOT EXISTS.
	db2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db2.Close())
}
