package history

import "sync"

// MemoryBackend keeps snapshots in memory. Used by tests and by callers
// that want a ledger for the lifetime of one process only.
type MemoryBackend struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (b *MemoryBackend) Append(s Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snaps = append(b.snaps, s)
	return nil
}

func (b *MemoryBackend) Load(n int) ([]Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Snapshot, len(b.snaps))
	copy(out, b.snaps)
	return tail(out, n), nil
}
