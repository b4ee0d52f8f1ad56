package history

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Backend keeps the ledger as a single JSONL object in S3 so several
// analyst workstations can share one run history. Append is
// read-modify-write; concurrent writers can lose a snapshot.
type S3Backend struct {
	Bucket string
	Key    string
	Client *s3.Client
}

// NewS3Backend initializes an S3 backend from an s3://bucket/key URL.
func NewS3Backend(ctx context.Context, s3URL string) (*S3Backend, error) {
	u, err := url.Parse(s3URL)
	if err != nil {
		return nil, fmt.Errorf("invalid s3 url: %w", err)
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return &S3Backend{
		Bucket: u.Host,
		Key:    strings.TrimPrefix(u.Path, "/"),
		Client: s3.NewFromConfig(cfg),
	}, nil
}

func (b *S3Backend) Append(s Snapshot) error {
	existing, err := b.readAll()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, snap := range append(existing, s) {
		if err := enc.Encode(snap); err != nil {
			return err
		}
	}

	_, err = b.Client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket:      aws.String(b.Bucket),
		Key:         aws.String(b.Key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	return err
}

func (b *S3Backend) Load(n int) ([]Snapshot, error) {
	snaps, err := b.readAll()
	if err != nil {
		return nil, err
	}
	return tail(snaps, n), nil
}

// readAll fetches the whole ledger object. A ledger nobody has written
// yet reads as empty, same as a missing local file.
func (b *S3Backend) readAll() ([]Snapshot, error) {
	resp, err := b.Client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(b.Bucket),
		Key:    aws.String(b.Key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
			return nil, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	var snaps []Snapshot
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var s Snapshot
		if json.Unmarshal(sc.Bytes(), &s) != nil {
			continue
		}
		snaps = append(snaps, s)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return snaps, nil
}
