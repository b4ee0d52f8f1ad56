// Package storage abstracts where archived evidence lands. Runs can be
// mirrored to a local directory or an S3 bucket through the same
// BlobStore interface.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
)

// BlobStore defines the interface for abstract storage backends.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// FromURL resolves an archive destination. "s3://bucket/prefix" yields an
// S3Store plus the key prefix; anything else is treated as a local
// directory root with an empty prefix.
func FromURL(ctx context.Context, raw string) (BlobStore, string, error) {
	if !strings.HasPrefix(raw, "s3://") {
		return NewLocalStore(raw), "", nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, "", fmt.Errorf("invalid archive destination %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, "", fmt.Errorf("invalid archive destination %q: missing bucket", raw)
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("unable to load SDK config: %w", err)
	}

	prefix := strings.Trim(u.Path, "/")
	return NewS3Store(cfg, u.Host), prefix, nil
}
