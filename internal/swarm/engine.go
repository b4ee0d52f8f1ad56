// Package swarm runs evidence uploads through a self-tuning worker pool.
// The pool grows while S3 keeps up and backs off when it throttles.
package swarm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aws/smithy-go"
)

// resizeEvery is how often the pool compares worker count to the AIMD
// target; idleCheck is how long an idle worker waits before considering
// an exit.
const (
	resizeEvery = 50 * time.Millisecond
	idleCheck   = 50 * time.Millisecond
)

// Task represents a unit of work for the swarm.
type Task func(ctx context.Context) error

// Engine manages the worker pool and concurrency.
type Engine struct {
	aimd    *AIMD
	tasks   chan Task
	workers sync.WaitGroup
	pending sync.WaitGroup
	quit    chan struct{}

	mu     sync.Mutex
	active int
	stats  Stats
	errs   []error
}

// Stats holds runtime statistics for the engine.
type Stats struct {
	ActiveWorkers  int
	Concurrency    int
	TasksCompleted int64
	TasksFailed    int64
	Throttled      int64
}

// NewEngine creates a pool that starts at the given concurrency and may
// scale between min and max as the AIMD loop reacts to feedback.
func NewEngine(start, min, max int) *Engine {
	if start < 1 {
		start = 1
	}
	return &Engine{
		aimd:  NewAIMD(start, min, max),
		tasks: make(chan Task, 1000),
		quit:  make(chan struct{}),
	}
}

// Start begins the resize loop that keeps the worker count at the AIMD
// target.
func (e *Engine) Start(ctx context.Context) {
	go e.resize(ctx)
}

// Submit adds a task to the queue.
func (e *Engine) Submit(t Task) {
	e.pending.Add(1)
	e.tasks <- t
}

// Drain blocks until every submitted task has finished.
func (e *Engine) Drain() {
	e.pending.Wait()
}

// Stop shuts the pool down and waits for workers to exit. Call Drain
// first if submitted tasks must complete.
func (e *Engine) Stop() {
	close(e.quit)
	e.workers.Wait()
}

// Errors returns the errors collected from failed tasks.
func (e *Engine) Errors() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]error, len(e.errs))
	copy(out, e.errs)
	return out
}

// GetStats returns current engine stats.
func (e *Engine) GetStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.ActiveWorkers = e.active
	s.Concurrency = e.aimd.GetConcurrency()
	return s
}

// resize spawns workers up to the AIMD target. Shrinking is passive:
// surplus workers notice the lowered target and exit on their own.
func (e *Engine) resize(ctx context.Context) {
	tick := time.NewTicker(resizeEvery)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.quit:
			return
		case <-tick.C:
			for n := e.activeCount(); n < e.aimd.GetConcurrency(); n++ {
				e.workers.Add(1)
				go e.worker(ctx)
			}
		}
	}
}

func (e *Engine) activeCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *Engine) surplus() bool {
	return e.activeCount() > e.aimd.GetConcurrency()
}

func (e *Engine) worker(ctx context.Context) {
	e.mu.Lock()
	e.active++
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.active--
		e.mu.Unlock()
		e.workers.Done()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.quit:
			return
		case task := <-e.tasks:
			e.execute(ctx, task)
			if e.surplus() {
				return
			}
		case <-time.After(idleCheck):
			if e.surplus() {
				return
			}
		}
	}
}

// execute runs one task, feeds its outcome to the AIMD controller, and
// records the result.
func (e *Engine) execute(ctx context.Context, task Task) {
	defer e.pending.Done()

	start := time.Now()
	err := task(ctx)
	latency := time.Since(start)

	throttled := IsThrottle(err)
	e.aimd.Feedback(latency, throttled)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.stats.TasksFailed++
		e.errs = append(e.errs, err)
	} else {
		e.stats.TasksCompleted++
	}
	if throttled {
		e.stats.Throttled++
	}
}

// IsThrottle reports whether err is an AWS rate-limiting response.
func IsThrottle(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "SlowDown", "Throttling", "ThrottlingException",
		"RequestLimitExceeded", "TooManyRequestsException":
		return true
	}
	return false
}
