package mptm

import (
	"sync"

	"github.com/cwbudde/minuitgrad/internal/job"
)

// JobFactory reconstructs a Job in a freshly re-exec'd worker process
// from a byte-encoded configuration, since a worker cannot inherit a
// Go closure or pointer from the master's memory across a process
// boundary. The multi-process backend requires every job kind it runs
// to register one; the in-process backend (single binary, goroutine
// workers) never needs this.
type JobFactory func(config []byte) (job.Job, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]JobFactory{}
)

// RegisterJobFactory makes a job kind constructible by worker
// processes spawned for the multi-process backend. Call this from an
// init function in the package that defines the concrete Job, keyed by
// a name stable across the master and every worker binary (they are
// the same executable, re-exec'd, so this is simply "call it from
// main's import graph on both sides").
func RegisterJobFactory(kind string, factory JobFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[kind] = factory
}

func lookupJobFactory(kind string) (JobFactory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[kind]
	return f, ok
}
