package swarm

import (
	"sync"
	"time"
)

const (
	// additiveStep is how many workers a healthy sample adds.
	additiveStep = 5
	// healthyLatency is the per-task latency under which the pool grows.
	healthyLatency = 100 * time.Millisecond
	// adjustEvery rate-limits adjustments to dampen oscillation.
	adjustEvery = 100 * time.Millisecond
)

// AIMD adjusts upload concurrency with additive increase and
// multiplicative decrease, the same feedback loop TCP uses. Throttle
// responses from S3 halve the worker target; sustained low latency
// grows it back.
type AIMD struct {
	mu         sync.Mutex
	target     int
	floor      int
	ceil       int
	lastAdjust time.Time
}

func NewAIMD(start, min, max int) *AIMD {
	return &AIMD{
		target:     start,
		floor:      min,
		ceil:       max,
		lastAdjust: time.Now(),
	}
}

func (a *AIMD) GetConcurrency() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.target
}

// Feedback reports the outcome of one upload.
func (a *AIMD) Feedback(lat time.Duration, throttled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	if now.Sub(a.lastAdjust) < adjustEvery {
		return
	}

	switch {
	case throttled:
		a.target = a.clamp(a.target / 2)
	case lat < healthyLatency:
		a.target = a.clamp(a.target + additiveStep)
	default:
		return
	}
	a.lastAdjust = now
}

func (a *AIMD) clamp(n int) int {
	if n < a.floor {
		return a.floor
	}
	if n > a.ceil {
		return a.ceil
	}
	return n
}
