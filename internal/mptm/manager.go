package mptm

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwbudde/minuitgrad/internal/job"
	"github.com/cwbudde/minuitgrad/internal/metrics"
)

// Mode selects how a Manager runs a job's tasks.
type Mode int

const (
	// InProcess runs every task as a direct call on a bounded pool of
	// goroutines within the calling process. This is the default: no
	// re-exec, no job factory registration required. The Manager unit
	// tests in this module use it; cmd/bench runs it and MultiProcess.
	InProcess Mode = iota

	// MultiProcess re-execs the current binary into a queue process,
	// which in turn spawns numWorkers worker processes (one per
	// available core when numWorkers <= 0), realizing the
	// full master/queue/worker topology. The job kind passed to
	// Activate must have a JobFactory registered so worker processes
	// can reconstruct it.
	MultiProcess
)

// Manager is the explicit, non-singleton context every task dispatch
// runs through. Nothing in this package reaches for a hidden global;
// callers that want process-wide convenience use SetDefault/Default
// themselves.
//
// Manager keeps a job.Registry so more than one job.Job can share a
// single activated topology: a job is registered the first time the
// manager sees it (UpdateReal or SubmitCycle), and Deregister tears the
// whole manager down once its last registered job leaves, freeing a
// later Activate to start a new epoch.
type Manager struct {
	mode       Mode
	numWorkers int
	metrics    *metrics.Collector

	mu       sync.Mutex
	active   bool
	queue    *childProcess // MultiProcess only
	registry *job.Registry
	jobIDs   map[job.Job]job.ID

	// wireMu serializes every master<->queue pipe transaction
	// (enqueue+retrieve, update_real, switch_work_mode,
	// call_double_const_method, terminate) so two concurrent Manager
	// calls never interleave frames on the one pipe. This keeps the
	// pipe protocol itself simple (request, then its reply, with
	// nothing else allowed to write in between) at the cost of
	// Manager's own public API processing one MultiProcess wire
	// transaction at a time; the dispatcher underneath has no such
	// limit; it tracks tasks per (job_id, task_id) and would happily
	// interleave several jobs' traffic if more than one caller could
	// reach the pipe concurrently.
	wireMu sync.Mutex
}

// NewManager constructs a Manager. numWorkers is only consulted in
// MultiProcess mode (queue worker-pool size) and InProcess mode
// (goroutine pool size); a value <= 0 means "one worker per available
// core" via runtime.NumCPU, resolved at Activate time in MultiProcess
// mode and at each SubmitCycle in InProcess mode.
func NewManager(mode Mode, numWorkers int) *Manager {
	return &Manager{
		mode:       mode,
		numWorkers: numWorkers,
		metrics:    metrics.NewCollector(),
		registry:   job.NewRegistry(),
		jobIDs:     make(map[job.Job]job.ID),
	}
}

// Metrics returns the manager's counters, for a monitor endpoint or
// log line to read without coupling to dispatch internals.
func (m *Manager) Metrics() metrics.Snapshot {
	return m.metrics.Snapshot()
}

var defaultManager atomic.Pointer[Manager]

// SetDefault installs m as the process-wide convenience accessor.
// Passing nil clears it.
func SetDefault(m *Manager) { defaultManager.Store(m) }

// Default returns the manager installed by SetDefault, or nil if none
// has been installed. Callers running without ambient defaults should
// ignore this and hold their own *Manager explicitly.
func Default() *Manager { return defaultManager.Load() }

// Activate brings the manager up: in MultiProcess mode this spawns the
// queue process (which spawns its own workers); in InProcess mode it
// just marks the manager ready. jobKind/jobConfig are forwarded to
// worker processes via environment variables so they can reconstruct
// the job through a registered JobFactory; both are ignored in
// InProcess mode.
func (m *Manager) Activate(jobKind string, jobConfig []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return fmt.Errorf("%w: Activate called twice", ErrFatalLifecycle)
	}

	if m.mode == MultiProcess {
		workers := m.numWorkers
		if workers <= 0 {
			workers = defaultWorkerCount()
		}
		queue, err := spawnQueueProcess(workers, jobKind, jobConfig)
		if err != nil {
			return fmt.Errorf("mptm: activate: %w", err)
		}
		m.queue = queue
	}

	m.active = true
	return nil
}

// jobID returns j's registry ID, registering it on first use. This is
// the closest a Manager with no construction-time hook into job.Job
// can get to registering a job as soon as it is handed work: the first
// call through UpdateReal/SubmitCycle/CallDoubleConstMethod acts as
// that registration point.
func (m *Manager) jobID(j job.Job) job.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.jobIDs[j]; ok {
		return id
	}
	id := m.registry.Register(j)
	m.jobIDs[j] = id
	return id
}

// Deregister removes j from the manager's job registry. Once the
// registry is empty and the manager was active, this tears the
// manager down exactly as Terminate does and clears the active flag,
// so a fresh Activate can start a new epoch: the last job torn down
// takes the manager with it.
func (m *Manager) Deregister(j job.Job) error {
	m.mu.Lock()
	id, ok := m.jobIDs[j]
	if !ok {
		m.mu.Unlock()
		return ErrNotRegistered
	}
	delete(m.jobIDs, j)
	m.registry.Deregister(id)
	last := len(m.jobIDs) == 0 && m.active
	m.mu.Unlock()

	if last {
		return m.Terminate()
	}
	return nil
}

// UpdateReal broadcasts the shared read-only point for the next cycle.
// In InProcess mode this is a direct call into j; in MultiProcess mode
// it is forwarded across the wire to every worker, tagged with j's
// registry ID so a worker holding several jobs applies it to the right
// one.
func (m *Manager) UpdateReal(j job.Job, payload []byte) error {
	m.mu.Lock()
	active := m.active
	mode := m.mode
	queue := m.queue
	m.mu.Unlock()
	if !active {
		return ErrManagerNotActive
	}

	id := m.jobID(j)
	if mode == InProcess {
		return j.UpdateReal(payload)
	}

	m.wireMu.Lock()
	defer m.wireMu.Unlock()
	if err := queue.pipe.Send(TagUpdateReal, encodeWorkerUpdateReal(uint64(id), payload)); err != nil {
		return fmt.Errorf("%w: send update_real: %v", ErrFatalProtocol, err)
	}
	return queue.pipe.Flush()
}

// SwitchWorkMode toggles every worker between work-mode (polling the
// queue for tasks) and idle-mode (blocking until told to do
// something). InProcess mode has no separate worker processes to
// toggle, so this is a no-op there.
func (m *Manager) SwitchWorkMode(active bool) error {
	m.mu.Lock()
	managerActive := m.active
	mode := m.mode
	queue := m.queue
	m.mu.Unlock()
	if !managerActive {
		return ErrManagerNotActive
	}
	if mode == InProcess {
		return nil
	}

	payload := []byte{0}
	if active {
		payload[0] = 1
	}

	m.wireMu.Lock()
	defer m.wireMu.Unlock()
	if err := queue.pipe.Send(TagSwitchWorkMode, payload); err != nil {
		return fmt.Errorf("%w: send switch_work_mode: %v", ErrFatalProtocol, err)
	}
	return queue.pipe.Flush()
}

// CallDoubleConstMethod asks worker slot workerID to evaluate a named
// scalar on j via job.DoubleConstProvider and returns the value.
// InProcess mode calls j directly on the current process since there
// is only ever one.
func (m *Manager) CallDoubleConstMethod(j job.Job, workerID int, key string) (float64, error) {
	m.mu.Lock()
	active := m.active
	mode := m.mode
	queue := m.queue
	m.mu.Unlock()
	if !active {
		return 0, ErrManagerNotActive
	}

	id := m.jobID(j)
	if mode == InProcess {
		provider, ok := j.(job.DoubleConstProvider)
		if !ok {
			return 0, fmt.Errorf("mptm: job has no double-const method %q", key)
		}
		return provider.CallDoubleConst(key)
	}

	m.wireMu.Lock()
	defer m.wireMu.Unlock()

	req := encodeCallDoubleConstM2Q(uint64(id), uint32(workerID), key)
	if err := queue.pipe.Send(TagCallDoubleConstMethod, req); err != nil {
		return 0, fmt.Errorf("%w: send call_double_const_method: %v", ErrFatalProtocol, err)
	}
	if err := queue.pipe.Flush(); err != nil {
		return 0, fmt.Errorf("%w: flush call_double_const_method: %v", ErrFatalProtocol, err)
	}

	tag, payload, err := queue.pipe.Recv()
	if err != nil {
		return 0, fmt.Errorf("%w: recv double_const_result: %v", ErrFatalProtocol, err)
	}
	if tag != TagDoubleConstResult {
		return 0, fmt.Errorf("%w: unexpected Q2M tag %d waiting for double_const_result", ErrFatalProtocol, tag)
	}
	return decodeDoubleConstResult(payload), nil
}

// SubmitCycle runs taskCount independent tasks of j through the
// configured backend, then applies the assembled per-task results to j
// via ApplyResults. Tasks run in parallel within the cycle; completion
// order across tasks is unspecified, but results are reassembled by
// task index before ApplyResults sees them.
func (m *Manager) SubmitCycle(j job.Job, taskCount int) error {
	m.mu.Lock()
	active := m.active
	mode := m.mode
	queue := m.queue
	workers := m.numWorkers
	m.mu.Unlock()

	if !active {
		return ErrManagerNotActive
	}

	id := m.jobID(j)
	j.ClearResults()

	start := time.Now()
	var results [][]byte
	var err error
	if mode == InProcess {
		if workers <= 0 {
			workers = defaultWorkerCount()
		}
		results, err = runTasksInProcess(j, taskCount, workers, m.metrics)
	} else {
		m.wireMu.Lock()
		results, err = runTasksMultiProcess(queue, uint64(id), taskCount, m.metrics)
		m.wireMu.Unlock()
	}
	if err != nil {
		return err
	}
	m.metrics.RecordCycle(time.Since(start))

	return j.ApplyResults(results)
}

// Terminate shuts the manager down. In MultiProcess mode this signals
// the queue to shut down its workers and exit, then waits for it; in
// InProcess mode it just flips the active flag.
func (m *Manager) Terminate() error {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return nil
	}
	m.active = false
	mode := m.mode
	queue := m.queue
	m.mu.Unlock()

	if mode == InProcess {
		return nil
	}

	m.wireMu.Lock()
	defer m.wireMu.Unlock()
	if err := queue.pipe.Send(TagTerminate, nil); err != nil {
		return fmt.Errorf("%w: send terminate: %v", ErrFatalProtocol, err)
	}
	if err := queue.pipe.Flush(); err != nil {
		return fmt.Errorf("%w: flush terminate: %v", ErrFatalProtocol, err)
	}
	_, _, err := queue.pipe.Recv() // TagTerminated
	queue.pipe.Close()
	return err
}
