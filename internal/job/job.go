// Package job defines the capability interface MPTM dispatches work
// through, independent of any particular payload. A job owns a task
// set, accepts per-task evaluation requests, and collects per-task
// results; MPTM only ever talks to a job through this interface.
package job

import (
	"sync"
	"sync/atomic"
)

// ID uniquely identifies one job registered with a manager.
type ID uint64

// Job is the unit of work MPTM fans out across the worker pool. A
// single job's tasks are independent: EvaluateTask(i) for any i must
// not depend on another task's result within the same cycle.
//
// The queue process that routes tasks between master and workers never
// needs a Job of its own: it forwards EvaluateTask's opaque result
// bytes in task order (worker -> queue -> master) without interpreting
// them, so only the workers (EvaluateTask) and the master
// (ApplyResults) ever hold a concrete Job instance.
type Job interface {
	// TaskCount reports how many independent tasks this job currently
	// has queued for the active cycle.
	TaskCount() int

	// UpdateReal is invoked on every process before a new cycle's
	// tasks are evaluated, broadcasting the shared read-only point the
	// tasks will run against (e.g. the parameter vector x). Every
	// process that holds a Job (master and each worker) applies this
	// identically before the cycle's tasks run.
	UpdateReal(payload []byte) error

	// EvaluateTask executes task i on whatever worker process calls it
	// and returns its encoded result payload.
	EvaluateTask(task int) (result []byte, err error)

	// ApplyResults merges one cycle's task results, indexed by task
	// number, into the job's state on the master process.
	ApplyResults(results [][]byte) error

	// ClearResults resets per-cycle aggregation state so the job is
	// ready for the next UpdateReal/EvaluateTask round.
	ClearResults()
}

// DoubleConstProvider is an optional capability a Job may implement to
// answer a call_double_const_method request: a named scalar query a
// worker can be asked to evaluate against its held job, independent of
// the task/result cycle (e.g. reading back the current cost at the
// last point UpdateReal set, without running a full task set).
type DoubleConstProvider interface {
	CallDoubleConst(key string) (float64, error)
}

// Registry assigns monotonic IDs to jobs and looks them up by ID.
type Registry struct {
	nextID atomic.Uint64
	jobs   sync.Map // ID -> Job
}

// NewRegistry constructs an empty registry. IDs start at 1 so the zero
// value of ID can mean "unregistered".
func NewRegistry() *Registry {
	return &Registry{}
}

// Register assigns the job a new ID and stores it.
func (r *Registry) Register(j Job) ID {
	id := ID(r.nextID.Add(1))
	r.jobs.Store(id, j)
	return id
}

// Lookup retrieves a previously registered job.
func (r *Registry) Lookup(id ID) (Job, bool) {
	v, ok := r.jobs.Load(id)
	if !ok {
		return nil, false
	}
	return v.(Job), true
}

// Deregister removes a job, breaking any manager<->job reference so
// both can be garbage collected without needing weak pointers.
func (r *Registry) Deregister(id ID) {
	r.jobs.Delete(id)
}
