package prefetch

import (
	"math"
	"time"
)

// filetimeEpochDelta is the count of 100ns ticks between the FILETIME epoch
// (1601-01-01) and the Unix epoch (1970-01-01).
const filetimeEpochDelta = 116444736000000000

// FiletimeToTime converts a Windows FILETIME value to UTC. A zero FILETIME
// maps to the zero time.Time, which callers treat as "slot unused".
func FiletimeToTime(ft uint64) time.Time {
	if ft == 0 || ft > math.MaxInt64 {
		return time.Time{}
	}
	ticks := int64(ft) - filetimeEpochDelta
	return time.Unix(ticks/10_000_000, (ticks%10_000_000)*100).UTC()
}

// TimeToFiletime is the inverse mapping. Sub-100ns precision is dropped.
func TimeToFiletime(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixNano()/100 + filetimeEpochDelta)
}
