// Package prefetch decodes Windows Prefetch (SCCA) artifacts.
//
// A prefetch file records details of prior executable launches: the embedded
// executable name, a run counter, up to eight last-run timestamps, the
// volumes the executable touched, and the full list of files mapped during
// startup. The package implements the uncompressed on-disk layout for format
// versions 17 (XP/2003), 23 (Vista/7), 26 (8.1) and 30 (10/11). Compressed
// Win10+ artifacts (MAM header) are recognized and rejected with
// ErrCompressed so callers can skip them cleanly.
package prefetch

import (
	"fmt"
	"time"
)

// Version is the SCCA format version stored in the first header field.
type Version uint32

// Known format versions.
const (
	VersionWinXP Version = 17
	VersionVista Version = 23
	VersionWin8  Version = 26
	VersionWin10 Version = 30
)

// Supported reports whether the decoder understands this version.
func (v Version) Supported() bool {
	switch v {
	case VersionWinXP, VersionVista, VersionWin8, VersionWin10:
		return true
	}
	return false
}

func (v Version) String() string {
	switch v {
	case VersionWinXP:
		return "17 (Windows XP/2003)"
	case VersionVista:
		return "23 (Windows Vista/7)"
	case VersionWin8:
		return "26 (Windows 8.1)"
	case VersionWin10:
		return "30 (Windows 10/11)"
	}
	return fmt.Sprintf("%d (unknown)", uint32(v))
}

// VolumeInfo describes one volume referenced by the artifact.
type VolumeInfo struct {
	// DevicePath is the NT device path, e.g. `\VOLUME{01d2...-...}`.
	DevicePath string
	// CreationTime is the volume creation timestamp, UTC.
	CreationTime time.Time
	// SerialNumber is the volume serial number.
	SerialNumber uint32
}

// Artifact is the decoded field set of one prefetch file.
type Artifact struct {
	// Version is the SCCA format version.
	Version Version
	// ExecutableName is the UTF-16 name embedded in the header, without path.
	ExecutableName string
	// Hash is the prefetch path hash from the header.
	Hash uint32
	// FileSize is the size recorded in the header, which may disagree with
	// the on-disk size for tampered or partially written files.
	FileSize uint32
	// RunCount is the execution counter.
	RunCount uint32
	// LastRunTimes holds the non-zero last-run timestamps, newest first as
	// stored on disk. Versions before 26 record a single slot.
	LastRunTimes []time.Time
	// Volumes lists the referenced volumes.
	Volumes []VolumeInfo
	// FileNames is the accessed-files list from the filename strings block.
	FileNames []string
}
