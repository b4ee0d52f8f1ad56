// Package custody builds chain-of-custody manifests for archived evidence.
// A manifest records who collected a set of prefetch files, on which host,
// and the SHA-256 digest of every file so later tampering is detectable.
package custody

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Entry describes one collected file.
type Entry struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// Manifest is the chain-of-custody record for a single run.
type Manifest struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Collector string    `json:"collector"`
	Host      string    `json:"host"`
	Entries   []Entry   `json:"entries"`
}

// Build hashes every path and assembles a manifest for the run.
func Build(runID, collector string, paths []string) (*Manifest, error) {
	host, _ := os.Hostname()

	m := &Manifest{
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
		Collector: collector,
		Host:      host,
		Entries:   make([]Entry, 0, len(paths)),
	}

	for _, p := range paths {
		e, err := hashFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to fingerprint %s: %w", p, err)
		}
		m.Entries = append(m.Entries, e)
	}
	return m, nil
}

// Write serializes the manifest as indented JSON.
func (m *Manifest) Write(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Verify re-hashes every entry and returns the paths whose digests no
// longer match the manifest.
func (m *Manifest) Verify() ([]string, error) {
	var mismatched []string
	for _, e := range m.Entries {
		cur, err := hashFile(e.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to re-hash %s: %w", e.Path, err)
		}
		if cur.SHA256 != e.SHA256 {
			mismatched = append(mismatched, e.Path)
		}
	}
	return mismatched, nil
}

// ResolveCollector identifies who is running the collection. It asks STS
// for the caller ARN; without usable AWS credentials it falls back to the
// local hostname.
func ResolveCollector(ctx context.Context) string {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err == nil {
		client := sts.NewFromConfig(cfg)
		if result, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{}); err == nil && result.Arn != nil {
			return *result.Arn
		}
	}

	host, err := os.Hostname()
	if err != nil {
		return "host:unknown"
	}
	return "host:" + host
}

func hashFile(path string) (Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return Entry{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Entry{}, err
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Entry{}, err
	}

	return Entry{
		Path:   path,
		Size:   info.Size(),
		SHA256: hex.EncodeToString(h.Sum(nil)),
	}, nil
}
