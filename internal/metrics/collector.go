// Package metrics tracks counters and cycle-duration samples for
// MPTM's queue and worker pool, in the mutex-guarded map-of-counters
// shape GoSim's metrics collector uses for its own time series,
// scaled down to the handful of gauges a gradient run needs.
package metrics

import (
	"sync"
	"time"
)

// Collector accumulates task/cycle counters for one manager's
// lifetime. It is safe for concurrent use across the goroutines of the
// InProcess backend or the processes of the MultiProcess backend
// (each process gets its own Collector; nothing here crosses a pipe).
type Collector struct {
	mu sync.Mutex

	tasksEvaluated  uint64
	cyclesCompleted uint64
	workersDied     uint64
	cycleDurations  []time.Duration
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// RecordTask increments the evaluated-task counter.
func (c *Collector) RecordTask() {
	c.mu.Lock()
	c.tasksEvaluated++
	c.mu.Unlock()
}

// RecordCycle records one completed cycle's wall-clock duration.
func (c *Collector) RecordCycle(d time.Duration) {
	c.mu.Lock()
	c.cyclesCompleted++
	c.cycleDurations = append(c.cycleDurations, d)
	c.mu.Unlock()
}

// RecordWorkerDeath increments the worker-death counter.
func (c *Collector) RecordWorkerDeath() {
	c.mu.Lock()
	c.workersDied++
	c.mu.Unlock()
}

// Snapshot is a point-in-time read of every counter, safe to hand to
// an HTTP handler or log line without holding the collector's lock.
type Snapshot struct {
	TasksEvaluated    uint64
	CyclesCompleted   uint64
	WorkersDied       uint64
	MeanCycleDuration time.Duration
}

// Snapshot returns the current counter values.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	var mean time.Duration
	if n := len(c.cycleDurations); n > 0 {
		var total time.Duration
		for _, d := range c.cycleDurations {
			total += d
		}
		mean = total / time.Duration(n)
	}

	return Snapshot{
		TasksEvaluated:    c.tasksEvaluated,
		CyclesCompleted:   c.cyclesCompleted,
		WorkersDied:       c.workersDied,
		MeanCycleDuration: mean,
	}
}
