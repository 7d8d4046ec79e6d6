package mptm

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/cwbudde/minuitgrad/internal/backoff"
	"github.com/cwbudde/minuitgrad/internal/job"
	"github.com/cwbudde/minuitgrad/internal/metrics"
)

func defaultWorkerCount() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}

// spawnQueueProcess re-execs the queue role and hands it everything it
// needs to, in turn, spawn workers workers: the worker count (so the
// queue knows its own pool size) and the job kind/config (so each
// worker it spawns can reconstruct the same Job via RegisterJobFactory).
func spawnQueueProcess(workers int, jobKind string, jobConfig []byte) (*childProcess, error) {
	child, err := spawnChild(roleQueue, -1)
	if err != nil {
		return nil, err
	}
	child.cmd.Env = append(child.cmd.Env,
		fmt.Sprintf("MINUITGRAD_NUM_WORKERS=%d", workers),
		fmt.Sprintf("MINUITGRAD_JOB_KIND=%s", jobKind),
		fmt.Sprintf("MINUITGRAD_JOB_CONFIG=%s", jobConfig),
	)
	return child, nil
}

// runTasksInProcess evaluates taskCount tasks of j across a bounded
// goroutine pool and returns results ordered by task index.
func runTasksInProcess(j job.Job, taskCount int, workers int, collector *metrics.Collector) ([][]byte, error) {
	results := make([][]byte, taskCount)
	errs := make([]error, taskCount)

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for task := 0; task < taskCount; task++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(task int) {
			defer wg.Done()
			defer func() { <-sem }()
			r, err := j.EvaluateTask(task)
			results[task] = r
			errs[task] = err
			if err == nil {
				collector.RecordTask()
			}
		}(task)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("mptm: in-process task evaluation: %w", err)
		}
	}
	return results, nil
}

// newRetrieveBackoff returns the backoff that paces the master's
// retrieve-not-ready retry loop.
// It is new every call rather than shared state on Manager, since each
// SubmitCycle starts its own fresh retrieve negotiation.
func newRetrieveBackoff() backoff.Exponential {
	return backoff.NewExponential(time.Millisecond, 20*time.Millisecond, true)
}

// runTasksMultiProcess submits one job's cycle to the queue process
// via the enqueue/retrieve handshake and blocks for its result set:
// send one TagEnqueue per task, then poll TagRetrieve until
// TagRetrieveAccepted, backing off between TagRetrieveRejected replies
// since the queue's readiness depends on other workers (and possibly
// other jobs) draining their own pending tasks. wireMu must already be
// held by the caller: the master<->queue pipe carries one transaction
// at a time.
//
// A retrieve_accepted frame may bundle another job_id's completed
// results alongside jobID's if both happened to finish in the same
// gap between retrieve attempts; this call only ever waits on jobID,
// so any other job's results arriving bundled here are logged and
// dropped; nothing in this manager is waiting on them; a caller that
// wants to pick several jobs' results out of one retrieve_accepted
// frame would need a lower-level client than Manager.
func runTasksMultiProcess(queue *childProcess, jobID uint64, taskCount int, collector *metrics.Collector) ([][]byte, error) {
	for task := 0; task < taskCount; task++ {
		payload := encodeJobTask(jobTask{JobID: jobID, Task: uint32(task)})
		if err := queue.pipe.Send(TagEnqueue, payload); err != nil {
			return nil, fmt.Errorf("%w: enqueue task %d: %v", ErrFatalProtocol, task, err)
		}
	}
	if err := queue.pipe.Flush(); err != nil {
		return nil, fmt.Errorf("%w: flush enqueue: %v", ErrFatalProtocol, err)
	}

	bo := newRetrieveBackoff()
	attempt := 0
	for {
		if err := queue.pipe.Send(TagRetrieve, nil); err != nil {
			return nil, fmt.Errorf("%w: retrieve: %v", ErrFatalProtocol, err)
		}
		if err := queue.pipe.Flush(); err != nil {
			return nil, fmt.Errorf("%w: flush retrieve: %v", ErrFatalProtocol, err)
		}

		tag, payload, err := queue.pipe.Recv()
		if err != nil {
			return nil, fmt.Errorf("%w: recv retrieve reply: %v", ErrFatalProtocol, err)
		}

		switch tag {
		case TagWorkerDied:
			collector.RecordWorkerDeath()
			continue

		case TagRetrieveRejected:
			time.Sleep(bo.NextDelay(attempt))
			attempt++
			continue

		case TagRetrieveAccepted:
			byJob := decodeMultiJobResults(payload)
			results, ok := byJob[jobID]
			for other := range byJob {
				if other != jobID {
					slog.Warn("dropping bundled retrieve_accepted results for unawaited job", "job_id", other)
				}
			}
			if !ok {
				return nil, fmt.Errorf("%w: retrieve_accepted carried no results for job %d", ErrFatalProtocol, jobID)
			}
			for range results {
				collector.RecordTask()
			}
			return results, nil

		default:
			return nil, fmt.Errorf("%w: unexpected Q2M tag %d waiting for retrieve reply", ErrFatalProtocol, tag)
		}
	}
}
