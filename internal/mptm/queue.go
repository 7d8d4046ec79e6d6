package mptm

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/minuitgrad/internal/backoff"
	"github.com/cwbudde/minuitgrad/internal/transport"
)

// jobCycle tracks one job_id's in-flight task set: how many tasks have
// been enqueued for it so far and how many have reported a result.
// Retrieval for the whole queue is gated on every tracked job with
// outstanding work being complete, not just the job the caller happens
// to be waiting on.
type jobCycle struct {
	total     int
	completed int
	byTask    map[uint32][]byte
}

// dispatcher is the queue process's task router and result aggregator:
// it owns no job logic of its own, only the
// (job_id, task_id) bookkeeping needed to hand work to whichever
// worker asks for it next and reassemble results per job. Splitting
// this out as a value independent of real process spawning is what
// lets the routing and aggregation logic be exercised directly in
// tests against loopback pipes, the same way internal/transport's
// tests avoid a real fork.
type dispatcher struct {
	master  *transport.Pipe
	workers []*transport.Pipe

	pending  []jobTask          // global FIFO of unassigned (job_id, task_id) pairs
	inFlight map[int]jobTask    // worker slot -> task it's holding
	cycles   map[uint64]*jobCycle

	// deathLogBackoff paces repeated "worker died" log lines when
	// several workers fail close together; it never governs retry,
	// since a lost task's result is simply gone for its job's cycle.
	deathLogBackoff backoff.Exponential
	deathAttempts   int
	nextDeathLogAt  time.Time
}

func newDispatcher(master *transport.Pipe, workers []*transport.Pipe) *dispatcher {
	return &dispatcher{
		master:          master,
		workers:         workers,
		inFlight:        make(map[int]jobTask),
		cycles:          make(map[uint64]*jobCycle),
		deathLogBackoff: backoff.NewExponential(100*time.Millisecond, 5*time.Second, true),
	}
}

func (d *dispatcher) cycleFor(jobID uint64) *jobCycle {
	c, ok := d.cycles[jobID]
	if !ok {
		c = &jobCycle{byTask: make(map[uint32][]byte)}
		d.cycles[jobID] = c
	}
	return c
}

// run is the queue process's main loop: poll master and every worker
// pipe, dispatch M2Q/W2Q messages as they arrive, until TagTerminate.
func (d *dispatcher) run() error {
	entries := make([]transport.PollEntry, 0, len(d.workers)+1)
	for {
		entries = entries[:0]
		entries = append(entries, transport.PollEntry{Pipe: d.master})
		for _, w := range d.workers {
			entries = append(entries, transport.PollEntry{Pipe: w})
		}

		if _, err := transport.Poll(entries, -1); err != nil {
			return fmt.Errorf("mptm: queue poll: %w", err)
		}

		if n, _ := d.master.BytesReadableNonblocking(); n > 0 {
			done, err := d.handleMaster()
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}

		for slot, w := range d.workers {
			if n, _ := w.BytesReadableNonblocking(); n > 0 {
				if err := d.handleWorker(slot, w); err != nil {
					return err
				}
			}
		}
	}
}

func (d *dispatcher) handleMaster() (done bool, err error) {
	tag, payload, err := d.master.Recv()
	if err != nil {
		return false, fmt.Errorf("%w: master recv: %v", ErrFatalProtocol, err)
	}

	switch tag {
	case TagEnqueue:
		jt := decodeJobTask(payload)
		d.pending = append(d.pending, jt)
		d.cycleFor(jt.JobID).total++
		return false, nil

	case TagRetrieve:
		if !d.readyToRetrieve() {
			if sendErr := d.master.Send(TagRetrieveRejected, nil); sendErr != nil {
				return false, fmt.Errorf("%w: retrieve_rejected: %v", ErrFatalProtocol, sendErr)
			}
			return false, d.master.Flush()
		}
		byJob := d.drainCompletedCycles()
		if sendErr := d.master.Send(TagRetrieveAccepted, encodeMultiJobResults(byJob)); sendErr != nil {
			return false, fmt.Errorf("%w: retrieve_accepted: %v", ErrFatalProtocol, sendErr)
		}
		return false, d.master.Flush()

	case TagUpdateReal:
		return false, d.fanOut(TagWorkerUpdateReal, payload)

	case TagSwitchWorkMode:
		return false, d.fanOut(TagWorkerSwitchWorkMode, payload)

	case TagCallDoubleConstMethod:
		jobID, workerID, key := decodeCallDoubleConstM2Q(payload)
		if int(workerID) >= len(d.workers) {
			return false, fmt.Errorf("%w: call_double_const_method: worker %d out of range", ErrFatalProtocol, workerID)
		}
		w := d.workers[workerID]
		if sendErr := w.Send(TagWorkerCallDoubleConstMethod, encodeCallDoubleConstQ2W(jobID, key)); sendErr != nil {
			return false, fmt.Errorf("%w: forward call_double_const_method: %v", ErrFatalProtocol, sendErr)
		}
		return false, w.Flush()

	case TagTerminate:
		for _, w := range d.workers {
			w.Send(TagWorkerShutdown, nil)
			w.Flush()
		}
		for _, w := range d.workers {
			if _, err := w.Close(); err != nil {
				slog.Warn("worker exited with error during shutdown", "error", err)
			}
		}
		d.master.Send(TagTerminated, nil)
		d.master.Flush()
		return true, nil

	default:
		return false, fmt.Errorf("%w: unexpected M2Q tag %d", ErrFatalProtocol, tag)
	}
}

func (d *dispatcher) fanOut(tag transport.Tag, payload []byte) error {
	for _, w := range d.workers {
		if err := w.Send(tag, payload); err != nil {
			return fmt.Errorf("%w: fan out %d: %v", ErrFatalProtocol, tag, err)
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("%w: flush fan out %d: %v", ErrFatalProtocol, tag, err)
		}
	}
	return nil
}

// readyToRetrieve reports whether the queue can satisfy a retrieve
// request: the pending FIFO must be empty and every job with
// outstanding work must have every one of its tasks completed.
func (d *dispatcher) readyToRetrieve() bool {
	if len(d.pending) > 0 {
		return false
	}
	for _, c := range d.cycles {
		if c.total > 0 && c.completed < c.total {
			return false
		}
	}
	return true
}

// drainCompletedCycles collects and clears every job's finished result
// set, ready to ship back to the master in one retrieve_accepted
// frame. A job with total == 0 (nothing enqueued since it was last
// drained) contributes nothing.
func (d *dispatcher) drainCompletedCycles() map[uint64][][]byte {
	byJob := make(map[uint64][][]byte)
	for jobID, c := range d.cycles {
		if c.total == 0 {
			continue
		}
		ordered := make([][]byte, c.total)
		for task := 0; task < c.total; task++ {
			ordered[task] = c.byTask[uint32(task)]
		}
		byJob[jobID] = ordered
		delete(d.cycles, jobID)
	}
	return byJob
}

func (d *dispatcher) handleWorker(slot int, w *transport.Pipe) error {
	tag, payload, err := w.Recv()
	if err != nil {
		// A worker pipe going bad mid-cycle is WarnShutdown, not fatal:
		// the in-flight task is dropped, no retry, bookkeeping only.
		if now := time.Now(); !now.Before(d.nextDeathLogAt) {
			slog.Warn("worker pipe closed", "slot", slot, "error", err)
			d.nextDeathLogAt = now.Add(d.deathLogBackoff.NextDelay(d.deathAttempts))
			d.deathAttempts++
		}
		delete(d.inFlight, slot)
		d.master.Send(TagWorkerDied, nil)
		d.master.Flush()
		return nil
	}

	switch tag {
	case TagDequeue:
		if len(d.pending) == 0 {
			if err := w.Send(TagDequeueRejected, nil); err != nil {
				return fmt.Errorf("%w: dequeue_rejected: %v", ErrFatalProtocol, err)
			}
			return w.Flush()
		}
		jt := d.pending[0]
		d.pending = d.pending[1:]
		d.inFlight[slot] = jt
		if err := w.Send(TagDequeueAccepted, encodeJobTask(jt)); err != nil {
			return fmt.Errorf("%w: dequeue_accepted: %v", ErrFatalProtocol, err)
		}
		return w.Flush()

	case TagSendResult:
		kind, jobID, rest := decodeSendResultHeader(payload)
		switch kind {
		case sendResultTask:
			task, result := decodeSendResultTask(rest)
			c := d.cycleFor(jobID)
			c.byTask[task] = result
			c.completed++
			delete(d.inFlight, slot)
			if err := w.Send(TagResultReceived, nil); err != nil {
				return fmt.Errorf("%w: result_received: %v", ErrFatalProtocol, err)
			}
			return w.Flush()

		case sendResultDoubleConst:
			value := decodeSendResultDoubleConst(rest)
			if err := w.Send(TagResultReceived, nil); err != nil {
				return fmt.Errorf("%w: result_received: %v", ErrFatalProtocol, err)
			}
			if err := w.Flush(); err != nil {
				return fmt.Errorf("%w: flush result_received: %v", ErrFatalProtocol, err)
			}
			if err := d.master.Send(TagDoubleConstResult, encodeDoubleConstResult(value)); err != nil {
				return fmt.Errorf("%w: relay double_const_result: %v", ErrFatalProtocol, err)
			}
			return d.master.Flush()

		default:
			return fmt.Errorf("%w: unexpected send_result kind %d", ErrFatalProtocol, kind)
		}

	default:
		return fmt.Errorf("%w: unexpected W2Q tag %d", ErrFatalProtocol, tag)
	}
}
