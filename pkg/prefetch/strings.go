package prefetch

import (
	"unicode/utf16"

	"github.com/kmorell/pfscan/internal/sys/intern"
)

// decodeUTF16 converts little-endian UTF-16 bytes to a string. An odd
// trailing byte is dropped.
func decodeUTF16(b []byte) string {
	u := make([]uint16, len(b)/2)
	for i := range u {
		u[i] = uint16(b[2*i]) | uint16(b[2*i+1])<<8
	}
	return string(utf16.Decode(u))
}

// decodeUTF16Z decodes up to the first NUL code unit.
func decodeUTF16Z(b []byte) string {
	for i := 0; i+1 < len(b); i += 2 {
		if b[i] == 0 && b[i+1] == 0 {
			return decodeUTF16(b[:i])
		}
	}
	return decodeUTF16(b)
}

// splitUTF16Z splits a block of NUL-terminated UTF-16 strings, ignoring
// empty entries produced by padding. Entries are interned; most artifacts
// list the same system DLLs.
func splitUTF16Z(b []byte) []string {
	var out []string
	start := 0
	for i := 0; i+1 < len(b); i += 2 {
		if b[i] == 0 && b[i+1] == 0 {
			if i > start {
				out = append(out, intern.String(decodeUTF16(b[start:i])))
			}
			start = i + 2
		}
	}
	if start < len(b)-1 {
		out = append(out, intern.String(decodeUTF16(b[start:])))
	}
	return out
}
