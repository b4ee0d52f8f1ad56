// Package intern canonicalizes strings that repeat across decoded
// artifacts. Accessed-file lists share most of their entries (system
// DLLs appear in nearly every prefetch file), so a scan of a full
// Prefetch directory holds one copy of each name instead of thousands.
package intern

import "sync"

// pool maps each seen string to its canonical copy. Entries are written
// once and read many times, including from parallel decode workers.
var pool sync.Map

// String returns the canonical copy of s, adding it on first sight.
func String(s string) string {
	if v, ok := pool.Load(s); ok {
		return v.(string)
	}
	v, _ := pool.LoadOrStore(s, s)
	return v.(string)
}
