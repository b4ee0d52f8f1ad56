// Package pftest builds synthetic prefetch artifacts for tests. The images
// it produces are structurally valid SCCA files with empty metrics and trace
// chain arrays, which the decoder does not read.
package pftest

import (
	"encoding/binary"
	"fmt"
	"time"
	"unicode/utf16"
)

// Volume describes one volume entry of a synthetic artifact.
type Volume struct {
	DevicePath string
	Created    time.Time
	Serial     uint32
}

// Spec describes the artifact to build.
type Spec struct {
	Version    uint32
	Executable string
	Hash       uint32
	RunCount   uint32
	// LastRuns fills the version's last-run slots in order; surplus entries
	// are dropped, missing slots stay zero.
	LastRuns  []time.Time
	Volumes   []Volume
	FileNames []string
	// ShortFileInfo selects the 216-byte Windows 10 variant.
	ShortFileInfo bool
}

// geometry mirrors the decoder's file information layout table.
type geometry struct {
	size         int
	lastRunOff   int
	lastRunSlots int
	runCountOff  int
	volumeStride int
}

func geometryFor(s Spec) geometry {
	switch s.Version {
	case 17:
		return geometry{68, 36, 1, 60, 40}
	case 23:
		return geometry{156, 44, 1, 68, 104}
	case 26:
		return geometry{224, 44, 8, 124, 104}
	case 30:
		if s.ShortFileInfo {
			return geometry{216, 44, 8, 116, 96}
		}
		return geometry{224, 44, 8, 124, 96}
	}
	panic(fmt.Sprintf("pftest: no geometry for version %d", s.Version))
}

const headerSize = 84

// Build assembles the artifact image. It panics on a version it has no
// geometry for; everything else it renders as asked, valid or not.
func Build(s Spec) []byte {
	g := geometryFor(s)

	strings := make([]byte, 0, 256)
	for _, name := range s.FileNames {
		strings = append(strings, utf16le(name)...)
		strings = append(strings, 0, 0)
	}

	fiEnd := headerSize + g.size
	strOff := fiEnd
	volOff := strOff + len(strings)

	// Device paths live after the entry array, offsets relative to volOff.
	entries := len(s.Volumes) * g.volumeStride
	paths := make([]byte, 0, 128)
	pathOffs := make([]int, len(s.Volumes))
	for i, v := range s.Volumes {
		pathOffs[i] = entries + len(paths)
		paths = append(paths, utf16le(v.DevicePath)...)
		paths = append(paths, 0, 0)
	}

	total := volOff + entries + len(paths)
	buf := make([]byte, total)
	putU32 := func(off int, v uint32) { binary.LittleEndian.PutUint32(buf[off:], v) }
	putU64 := func(off int, v uint64) { binary.LittleEndian.PutUint64(buf[off:], v) }

	// Header.
	putU32(0, s.Version)
	copy(buf[4:], "SCCA")
	putU32(8, 0x11)
	putU32(12, uint32(total))
	name := utf16le(s.Executable)
	if len(name) > 58 {
		name = name[:58]
	}
	copy(buf[16:76], name)
	putU32(76, s.Hash)

	// File information block.
	fi := headerSize
	putU32(fi+0, uint32(fiEnd)) // metrics array (empty) starts after the block
	putU32(fi+8, uint32(fiEnd)) // trace chains array, also empty
	putU32(fi+16, uint32(strOff))
	putU32(fi+20, uint32(len(strings)))
	putU32(fi+24, uint32(volOff))
	putU32(fi+28, uint32(len(s.Volumes)))
	putU32(fi+32, uint32(entries+len(paths)))
	for i := 0; i < g.lastRunSlots && i < len(s.LastRuns); i++ {
		putU64(fi+g.lastRunOff+8*i, toFiletime(s.LastRuns[i]))
	}
	putU32(fi+g.runCountOff, s.RunCount)

	copy(buf[strOff:], strings)
	for i, v := range s.Volumes {
		base := volOff + i*g.volumeStride
		putU32(base+0, uint32(pathOffs[i]))
		putU32(base+4, uint32(len(utf16.Encode([]rune(v.DevicePath)))))
		putU64(base+8, toFiletime(v.Created))
		putU32(base+16, v.Serial)
	}
	copy(buf[volOff+entries:], paths)

	return buf
}

// Compressed returns a stub carrying the Win10+ MAM compression header.
func Compressed() []byte {
	return []byte{'M', 'A', 'M', 0x04, 0x00, 0x10, 0x00, 0x00, 0xde, 0xad, 0xbe, 0xef}
}

func utf16le(s string) []byte {
	u := utf16.Encode([]rune(s))
	b := make([]byte, 2*len(u))
	for i, c := range u {
		binary.LittleEndian.PutUint16(b[2*i:], c)
	}
	return b
}

func toFiletime(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixNano()/100 + 116444736000000000)
}
