package prefetch

import (
	"errors"
	"fmt"
)

// Sentinel errors returned (wrapped) by Parse.
var (
	// ErrNotPrefetch means the SCCA signature is absent.
	ErrNotPrefetch = errors.New("missing SCCA signature")
	// ErrCompressed means the file carries the Win10+ MAM compression header.
	ErrCompressed = errors.New("compressed prefetch (MAM), decompression not supported")
	// ErrUnsupportedVersion means the header names a format version the
	// decoder does not implement.
	ErrUnsupportedVersion = errors.New("unsupported format version")
	// ErrTruncated means the file ends before a required structure.
	ErrTruncated = errors.New("truncated file")
)

// ParseError reports where in the artifact decoding failed.
type ParseError struct {
	// Section names the structure being read, e.g. "header" or "volume 2".
	Section string
	// Offset is the absolute file offset of the failed read.
	Offset int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("prefetch: %s at offset %d: %v", e.Section, e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErr(section string, offset int, err error) *ParseError {
	return &ParseError{Section: section, Offset: offset, Err: err}
}
