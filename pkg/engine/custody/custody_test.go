package custody

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEvidence(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestBuildManifest(t *testing.T) {
	dir := t.TempDir()
	a := writeEvidence(t, dir, "CALC.EXE-7A1BC2E4.pf", "calc-bytes")
	b := writeEvidence(t, dir, "CMD.EXE-087B4001.pf", "cmd-bytes")

	m, err := Build("run-1", "host:workstation", []string{a, b})
	require.NoError(t, err)

	assert.Equal(t, "run-1", m.RunID)
	assert.Equal(t, "host:workstation", m.Collector)
	assert.NotEmpty(t, m.Host)
	assert.False(t, m.CreatedAt.IsZero())
	require.Len(t, m.Entries, 2)

	assert.Equal(t, a, m.Entries[0].Path)
	assert.Equal(t, int64(len("calc-bytes")), m.Entries[0].Size)
	// sha256("calc-bytes")
	assert.Equal(t, "62389c1b61795a7698e7e5821cae33783d0341985863280f10894c57f4567c95", m.Entries[0].SHA256)
	assert.NotEqual(t, m.Entries[0].SHA256, m.Entries[1].SHA256)
}

func TestBuildMissingFile(t *testing.T) {
	_, err := Build("run-1", "x", []string{filepath.Join(t.TempDir(), "gone.pf")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fingerprint")
}

func TestWriteAndReload(t *testing.T) {
	dir := t.TempDir()
	a := writeEvidence(t, dir, "a.pf", "aaaa")

	m, err := Build("run-2", "host:box", []string{a})
	require.NoError(t, err)

	out := filepath.Join(dir, "manifest.json")
	require.NoError(t, m.Write(out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var got Manifest
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, m.RunID, got.RunID)
	assert.Equal(t, m.Entries, got.Entries)
}

func TestVerifyDetectsTampering(t *testing.T) {
	dir := t.TempDir()
	a := writeEvidence(t, dir, "a.pf", "original")
	b := writeEvidence(t, dir, "b.pf", "untouched")

	m, err := Build("run-3", "host:box", []string{a, b})
	require.NoError(t, err)

	clean, err := m.Verify()
	require.NoError(t, err)
	assert.Empty(t, clean)

	require.NoError(t, os.WriteFile(a, []byte("modified"), 0644))

	mismatched, err := m.Verify()
	require.NoError(t, err)
	assert.Equal(t, []string{a}, mismatched)
}
