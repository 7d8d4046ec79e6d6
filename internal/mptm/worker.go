package mptm

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/cwbudde/minuitgrad/internal/backoff"
	"github.com/cwbudde/minuitgrad/internal/job"
	"github.com/cwbudde/minuitgrad/internal/transport"
)

// workMode is a worker's own view of the work-mode/idle-mode duality:
// work-mode workers poll the queue for tasks, idle-mode workers block
// waiting to be told to do something.
type workMode int

const (
	modeWork workMode = iota
	modeIdle
)

// workerJobCache lazily reconstructs one job.Job per distinct job_id a
// worker process is asked to touch, all through the same registered
// factory and config the process was launched with. This lets one
// worker process service several concurrently active job_ids of the
// same kind without the master needing to pass per-job construction
// state across the process boundary; two jobs of genuinely different
// kinds sharing one worker pool is out of scope (Activate only ever
// names one jobKind for the whole topology).
type workerJobCache struct {
	factory JobFactory
	config  []byte
	jobs    map[uint64]job.Job
}

func newWorkerJobCache(factory JobFactory, config []byte) *workerJobCache {
	return &workerJobCache{factory: factory, config: config, jobs: make(map[uint64]job.Job)}
}

func (c *workerJobCache) get(jobID uint64) (job.Job, error) {
	if j, ok := c.jobs[jobID]; ok {
		return j, nil
	}
	j, err := c.factory(c.config)
	if err != nil {
		return nil, err
	}
	c.jobs[jobID] = j
	return j, nil
}

// workerLoop is a single worker's life under the queue-to-worker
// message alphabet: in work-mode it repeatedly asks the queue to dequeue a
// task and evaluates whatever it's handed; in idle-mode it blocks on
// the pipe and only reacts to whatever the queue forwards. Both modes
// share one recv loop rather than two separate blocking loops, since a
// worker can receive control traffic (update_real, switch_work_mode,
// call_double_const_method) at any point regardless of which mode it
// was in when it last sent a request; a dequeue_accepted/rejected that
// arrives after the worker has already switched to idle-mode is stale
// and is quietly dropped.
//
// It is split out from runWorkerProcess so the protocol itself can be
// exercised against a loopback pipe and a fake job, with no process
// spawned.
func workerLoop(pipe *transport.Pipe, jobs *workerJobCache) error {
	mode := modeWork
	dequeueBackoff := backoff.NewExponential(time.Millisecond, 50*time.Millisecond, true)
	dequeueAttempts := 0
	dequeuePending := false // a dequeue is awaiting its accepted/rejected reply

	for {
		if mode == modeWork && !dequeuePending {
			if err := pipe.Send(TagDequeue, nil); err != nil {
				return fmt.Errorf("%w: send dequeue: %v", ErrFatalProtocol, err)
			}
			if err := pipe.Flush(); err != nil {
				return fmt.Errorf("%w: flush dequeue: %v", ErrFatalProtocol, err)
			}
			dequeuePending = true
		}

		tag, payload, err := pipe.Recv()
		if err != nil {
			return fmt.Errorf("%w: worker recv: %v", ErrFatalProtocol, err)
		}

		switch tag {
		case TagDequeueAccepted:
			dequeuePending = false
			if mode != modeWork {
				continue // stale reply to a dequeue sent before switching to idle-mode
			}
			dequeueAttempts = 0
			jt := decodeJobTask(payload)
			j, err := jobs.get(jt.JobID)
			if err != nil {
				return fmt.Errorf("%w: construct job %d: %v", ErrFatalProtocol, jt.JobID, err)
			}
			result, err := j.EvaluateTask(int(jt.Task))
			if err != nil {
				return fmt.Errorf("%w: evaluate task %d: %v", ErrFatalProtocol, jt.Task, err)
			}
			if err := pipe.Send(TagSendResult, encodeSendResultTask(jt.JobID, jt.Task, result)); err != nil {
				return fmt.Errorf("%w: send_result: %v", ErrFatalProtocol, err)
			}
			if err := pipe.Flush(); err != nil {
				return fmt.Errorf("%w: flush send_result: %v", ErrFatalProtocol, err)
			}
			if err := awaitResultReceived(pipe); err != nil {
				return err
			}

		case TagDequeueRejected:
			dequeuePending = false
			if mode != modeWork {
				continue // stale
			}
			time.Sleep(dequeueBackoff.NextDelay(dequeueAttempts))
			dequeueAttempts++

		case TagWorkerUpdateReal:
			jobID, real := decodeWorkerUpdateReal(payload)
			j, err := jobs.get(jobID)
			if err != nil {
				return fmt.Errorf("%w: construct job %d: %v", ErrFatalProtocol, jobID, err)
			}
			if err := j.UpdateReal(real); err != nil {
				return fmt.Errorf("%w: update_real: %v", ErrFatalProtocol, err)
			}

		case TagWorkerSwitchWorkMode:
			if len(payload) > 0 && payload[0] != 0 {
				mode = modeWork
				dequeueAttempts = 0
			} else {
				mode = modeIdle
			}

		case TagWorkerCallDoubleConstMethod:
			jobID, key := decodeCallDoubleConstQ2W(payload)
			j, err := jobs.get(jobID)
			if err != nil {
				return fmt.Errorf("%w: construct job %d: %v", ErrFatalProtocol, jobID, err)
			}
			provider, ok := j.(job.DoubleConstProvider)
			if !ok {
				return fmt.Errorf("%w: job %d has no double-const method %q", ErrFatalProtocol, jobID, key)
			}
			value, err := provider.CallDoubleConst(key)
			if err != nil {
				return fmt.Errorf("%w: call_double_const_method %q: %v", ErrFatalProtocol, key, err)
			}
			if err := pipe.Send(TagSendResult, encodeSendResultDoubleConst(jobID, value)); err != nil {
				return fmt.Errorf("%w: send_result double-const: %v", ErrFatalProtocol, err)
			}
			if err := pipe.Flush(); err != nil {
				return fmt.Errorf("%w: flush send_result double-const: %v", ErrFatalProtocol, err)
			}
			if err := awaitResultReceived(pipe); err != nil {
				return err
			}

		case TagResultReceived:
			continue // stale ack for a send_result whose round-trip already completed

		case TagWorkerShutdown:
			return nil

		default:
			return fmt.Errorf("%w: unexpected Q2W tag %d", ErrFatalProtocol, tag)
		}
	}
}

// awaitResultReceived blocks for the queue's acknowledgment of a
// send_result frame. A mismatched tag is fatal: send_result/
// result_received is a synchronous round trip, so anything else here
// means the protocol has desynchronized.
func awaitResultReceived(pipe *transport.Pipe) error {
	tag, _, err := pipe.Recv()
	if err != nil {
		return fmt.Errorf("%w: await result_received: %v", ErrFatalProtocol, err)
	}
	if tag != TagResultReceived {
		return fmt.Errorf("%w: expected result_received, got tag %d", ErrFatalProtocol, tag)
	}
	return nil
}

// runWorkerProcess is the entry point for a re-exec'd worker process:
// dial the pipe inherited from the queue, pin to the requested core,
// and run workerLoop until shutdown, reconstructing jobs on demand via
// the registered factory for this process's job kind.
func runWorkerProcess() {
	pipe := dialChildPipe(3)

	if coreID, err := strconv.Atoi(os.Getenv("MINUITGRAD_CORE_ID")); err == nil && coreID >= 0 {
		if pinErr := pinToCPU(coreID); pinErr != nil {
			slog.Warn("worker running unpinned", "core", coreID, "error", pinErr)
		}
	}

	cache, err := newWorkerJobCacheFromEnv()
	if err != nil {
		slog.Error("worker could not resolve job factory", "error", err)
		os.Exit(1)
	}

	if err := workerLoop(pipe, cache); err != nil {
		slog.Error("worker loop exited with error", "error", err)
		os.Exit(1)
	}
}

// newWorkerJobCacheFromEnv resolves the job factory this worker
// process needs from the MINUITGRAD_JOB_KIND/MINUITGRAD_JOB_CONFIG
// environment variables spawnQueueProcess set, independent of the
// master process's memory: a Go closure captured on the master side
// cannot otherwise cross a process boundary.
func newWorkerJobCacheFromEnv() (*workerJobCache, error) {
	kind := os.Getenv("MINUITGRAD_JOB_KIND")
	config := []byte(os.Getenv("MINUITGRAD_JOB_CONFIG"))

	factory, ok := lookupJobFactory(kind)
	if !ok {
		return nil, fmt.Errorf("mptm: no job factory registered for kind %q", kind)
	}
	return newWorkerJobCache(factory, config), nil
}
