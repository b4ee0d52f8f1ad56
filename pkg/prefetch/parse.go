package prefetch

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/kmorell/pfscan/internal/sys/intern"
)

const (
	headerSize = 84
	signature  = "SCCA"

	// Header field offsets.
	offVersion    = 0
	offSignature  = 4
	offFileSize   = 12
	offExecName   = 16
	execNameBytes = 60
	offHash       = 76

	// File information fields shared by all versions, relative to the
	// start of the block at offset 84.
	offMetricsOffset = 0
	offStringsOffset = 16
	offStringsSize   = 20
	offVolumesOffset = 24
	offVolumesCount  = 28

	maxVolumes = 64
)

// fiLayout captures the version-dependent geometry of the file information
// block that follows the header.
type fiLayout struct {
	size         int // block length in bytes
	lastRunOff   int // first last-run slot, relative to the block start
	lastRunSlots int
	runCountOff  int // relative to the block start
	volumeStride int // length of one volume information entry
}

func layoutFor(v Version, blockSize int) (fiLayout, error) {
	switch v {
	case VersionWinXP:
		return fiLayout{size: 68, lastRunOff: 36, lastRunSlots: 1, runCountOff: 60, volumeStride: 40}, nil
	case VersionVista:
		return fiLayout{size: 156, lastRunOff: 44, lastRunSlots: 1, runCountOff: 68, volumeStride: 104}, nil
	case VersionWin8:
		return fiLayout{size: 224, lastRunOff: 44, lastRunSlots: 8, runCountOff: 124, volumeStride: 104}, nil
	case VersionWin10:
		// Two variants in the wild, told apart by the block length.
		switch blockSize {
		case 224:
			return fiLayout{size: 224, lastRunOff: 44, lastRunSlots: 8, runCountOff: 124, volumeStride: 96}, nil
		case 216:
			return fiLayout{size: 216, lastRunOff: 44, lastRunSlots: 8, runCountOff: 116, volumeStride: 96}, nil
		}
		return fiLayout{}, fmt.Errorf("file information block of %d bytes: %w", blockSize, ErrUnsupportedVersion)
	}
	return fiLayout{}, ErrUnsupportedVersion
}

// Parse decodes a complete prefetch artifact from raw file contents.
func Parse(data []byte) (*Artifact, error) {
	if isCompressed(data) {
		return nil, parseErr("header", 0, ErrCompressed)
	}
	if len(data) < headerSize {
		return nil, parseErr("header", 0, ErrTruncated)
	}
	if string(data[offSignature:offSignature+4]) != signature {
		return nil, parseErr("header", offSignature, ErrNotPrefetch)
	}
	version := Version(binary.LittleEndian.Uint32(data[offVersion:]))
	if !version.Supported() {
		return nil, parseErr("header", offVersion, fmt.Errorf("version %d: %w", uint32(version), ErrUnsupportedVersion))
	}

	fi := data[headerSize:]
	blockSize := 0
	if version == VersionWin10 {
		// The metrics array starts immediately after the file information
		// block, so its offset reveals which Win10 variant this is.
		if len(fi) < 4 {
			return nil, parseErr("file information", headerSize, ErrTruncated)
		}
		blockSize = int(binary.LittleEndian.Uint32(fi[offMetricsOffset:])) - headerSize
	}
	l, err := layoutFor(version, blockSize)
	if err != nil {
		return nil, parseErr("file information", headerSize, err)
	}
	if len(fi) < l.size {
		return nil, parseErr("file information", headerSize, ErrTruncated)
	}

	art := &Artifact{
		Version:        version,
		ExecutableName: decodeUTF16Z(data[offExecName : offExecName+execNameBytes]),
		Hash:           binary.LittleEndian.Uint32(data[offHash:]),
		FileSize:       binary.LittleEndian.Uint32(data[offFileSize:]),
		RunCount:       binary.LittleEndian.Uint32(fi[l.runCountOff:]),
	}

	for i := 0; i < l.lastRunSlots; i++ {
		ft := binary.LittleEndian.Uint64(fi[l.lastRunOff+8*i:])
		if t := FiletimeToTime(ft); !t.IsZero() {
			art.LastRunTimes = append(art.LastRunTimes, t)
		}
	}

	strOff := int(binary.LittleEndian.Uint32(fi[offStringsOffset:]))
	strSize := int(binary.LittleEndian.Uint32(fi[offStringsSize:]))
	if strSize > 0 {
		if strOff+strSize > len(data) {
			return nil, parseErr("filename strings", strOff, ErrTruncated)
		}
		art.FileNames = splitUTF16Z(data[strOff : strOff+strSize])
	}

	volOff := int(binary.LittleEndian.Uint32(fi[offVolumesOffset:]))
	volCount := int(binary.LittleEndian.Uint32(fi[offVolumesCount:]))
	if volCount > maxVolumes {
		return nil, parseErr("volumes", volOff, fmt.Errorf("implausible volume count %d", volCount))
	}
	for i := 0; i < volCount; i++ {
		base := volOff + i*l.volumeStride
		if base+20 > len(data) {
			return nil, parseErr(fmt.Sprintf("volume %d", i), base, ErrTruncated)
		}
		vol := VolumeInfo{
			CreationTime: FiletimeToTime(binary.LittleEndian.Uint64(data[base+8:])),
			SerialNumber: binary.LittleEndian.Uint32(data[base+16:]),
		}
		// Device path offsets are relative to the volumes block, not the
		// individual entry.
		dpOff := int(binary.LittleEndian.Uint32(data[base:]))
		dpChars := int(binary.LittleEndian.Uint32(data[base+4:]))
		if dpChars > 0 {
			p := volOff + dpOff
			if p+2*dpChars > len(data) {
				return nil, parseErr(fmt.Sprintf("volume %d device path", i), p, ErrTruncated)
			}
			// A handful of device paths cover a whole evidence set.
			vol.DevicePath = intern.String(decodeUTF16(data[p : p+2*dpChars]))
		}
		art.Volumes = append(art.Volumes, vol)
	}

	return art, nil
}

// ParseFile reads and decodes a single artifact from disk.
func ParseFile(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return Parse(data)
}

// isCompressed detects the Win10+ MAM compression header.
func isCompressed(data []byte) bool {
	return len(data) >= 4 && data[0] == 'M' && data[1] == 'A' && data[2] == 'M'
}
