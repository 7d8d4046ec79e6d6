package mptm

import (
	"encoding/binary"
	"math"

	"github.com/cwbudde/minuitgrad/internal/transport"
)

// Message tags are grouped into four alphabets by direction:
// master-to-queue (M2Q), queue-to-master (Q2M), worker-to-queue (W2Q),
// and queue-to-worker (Q2W). Each alphabet only
// ever travels its own link (the master<->queue pipe, or one
// queue<->worker pipe), so tag values are free to repeat across
// alphabets; what matters is that a frame's tag is valid for the link
// it arrived on.
const (
	// M2Q: master -> queue.
	TagEnqueue               transport.Tag = iota + 1 // enqueue one (job_id, task_id)
	TagRetrieve                                        // ready for this cycle's results?
	TagUpdateReal                                       // broadcast shared read-only point for job_id
	TagSwitchWorkMode                                   // toggle every worker between work-mode and idle-mode
	TagCallDoubleConstMethod                            // forward a named scalar query to one worker
	TagTerminate                                        // begin orderly shutdown
)

const (
	// Q2M: queue -> master.
	TagRetrieveAccepted  transport.Tag = iota + 1 // queue was empty and every task completed; results follow
	TagRetrieveRejected                           // not ready yet
	TagWorkerDied                                 // a worker exited unexpectedly (bookkeeping only, no retry)
	TagDoubleConstResult                          // relayed call_double_const_method reply
	TagTerminated                                 // shutdown acknowledged
)

const (
	// W2Q: worker -> queue.
	TagDequeue    transport.Tag = iota + 1 // is there a task for me?
	TagSendResult                          // a task result, or a call_double_const_method reply
)

const (
	// Q2W: queue -> worker.
	TagDequeueAccepted             transport.Tag = iota + 1 // here is (job_id, task_id), evaluate it
	TagDequeueRejected                                      // nothing queued right now, re-poll
	TagWorkerUpdateReal                                     // forwarded broadcast for job_id
	TagWorkerSwitchWorkMode                                 // forwarded work-mode/idle-mode toggle
	TagWorkerCallDoubleConstMethod                          // forwarded named scalar query
	TagResultReceived                                       // send_result acknowledged
	TagWorkerShutdown                                       // exit cleanly
)

// jobTask identifies one unit of work the queue routes: a
// (job_id, task_id) pair.
type jobTask struct {
	JobID uint64
	Task  uint32
}

func encodeJobTask(jt jobTask) []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint64(buf[0:8], jt.JobID)
	binary.LittleEndian.PutUint32(buf[8:12], jt.Task)
	return buf
}

func decodeJobTask(buf []byte) jobTask {
	return jobTask{
		JobID: binary.LittleEndian.Uint64(buf[0:8]),
		Task:  binary.LittleEndian.Uint32(buf[8:12]),
	}
}

// encodeWorkerUpdateReal frames a job-scoped TagUpdateReal/TagWorkerUpdateReal
// payload: which job the broadcast point belongs to, followed by the
// job's own opaque encoding of that point.
func encodeWorkerUpdateReal(jobID uint64, payload []byte) []byte {
	buf := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint64(buf[0:8], jobID)
	copy(buf[8:], payload)
	return buf
}

func decodeWorkerUpdateReal(buf []byte) (jobID uint64, payload []byte) {
	return binary.LittleEndian.Uint64(buf[0:8]), append([]byte(nil), buf[8:]...)
}

// sendResultKind discriminates the two things a W2Q TagSendResult frame
// can carry, since W2Q only has two tags (dequeue, send_result): an
// evaluated task result, or a call_double_const_method reply working
// its way back through the queue to the master.
type sendResultKind byte

const (
	sendResultTask        sendResultKind = 0
	sendResultDoubleConst sendResultKind = 1
)

// encodeSendResultTask frames a worker's completed-task reply.
func encodeSendResultTask(jobID uint64, task uint32, result []byte) []byte {
	buf := make([]byte, 1+8+4+len(result))
	buf[0] = byte(sendResultTask)
	binary.LittleEndian.PutUint64(buf[1:9], jobID)
	binary.LittleEndian.PutUint32(buf[9:13], task)
	copy(buf[13:], result)
	return buf
}

// encodeSendResultDoubleConst frames a worker's call_double_const_method
// reply.
func encodeSendResultDoubleConst(jobID uint64, value float64) []byte {
	buf := make([]byte, 1+8+8)
	buf[0] = byte(sendResultDoubleConst)
	binary.LittleEndian.PutUint64(buf[1:9], jobID)
	binary.LittleEndian.PutUint64(buf[9:17], math.Float64bits(value))
	return buf
}

// decodeSendResultHeader reads the kind/job_id prefix common to both
// send_result shapes, returning the remainder for the kind-specific
// decoder to finish.
func decodeSendResultHeader(buf []byte) (kind sendResultKind, jobID uint64, rest []byte) {
	kind = sendResultKind(buf[0])
	jobID = binary.LittleEndian.Uint64(buf[1:9])
	rest = buf[9:]
	return kind, jobID, rest
}

func decodeSendResultTask(rest []byte) (task uint32, result []byte) {
	task = binary.LittleEndian.Uint32(rest[0:4])
	result = append([]byte(nil), rest[4:]...)
	return task, result
}

func decodeSendResultDoubleConst(rest []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(rest[0:8]))
}

// encodeDoubleConstResult frames the Q2M TagDoubleConstResult payload
// relayed back to the master.
func encodeDoubleConstResult(value float64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(value))
	return buf
}

func decodeDoubleConstResult(buf []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(buf))
}

// encodeCallDoubleConstM2Q frames the master's M2Q TagCallDoubleConstMethod
// request: which job, which worker slot, and the lookup key.
func encodeCallDoubleConstM2Q(jobID uint64, workerID uint32, key string) []byte {
	buf := make([]byte, 8+4+4+len(key))
	binary.LittleEndian.PutUint64(buf[0:8], jobID)
	binary.LittleEndian.PutUint32(buf[8:12], workerID)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(key)))
	copy(buf[16:], key)
	return buf
}

func decodeCallDoubleConstM2Q(buf []byte) (jobID uint64, workerID uint32, key string) {
	jobID = binary.LittleEndian.Uint64(buf[0:8])
	workerID = binary.LittleEndian.Uint32(buf[8:12])
	n := binary.LittleEndian.Uint32(buf[12:16])
	key = string(buf[16 : 16+int(n)])
	return jobID, workerID, key
}

// encodeCallDoubleConstQ2W frames the queue's forwarded request to the
// one addressed worker: the worker_id is implicit (it is whichever
// pipe the frame arrives on), so only job_id and key travel.
func encodeCallDoubleConstQ2W(jobID uint64, key string) []byte {
	buf := make([]byte, 8+4+len(key))
	binary.LittleEndian.PutUint64(buf[0:8], jobID)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(key)))
	copy(buf[12:], key)
	return buf
}

func decodeCallDoubleConstQ2W(buf []byte) (jobID uint64, key string) {
	jobID = binary.LittleEndian.Uint64(buf[0:8])
	n := binary.LittleEndian.Uint32(buf[8:12])
	key = string(buf[12 : 12+int(n)])
	return jobID, key
}

// encodeMultiJobResults frames the TagRetrieveAccepted payload: a
// "read N_jobs, then for each job read its job_id" shape, one ordered
// result list per job.
func encodeMultiJobResults(byJob map[uint64][][]byte) []byte {
	size := 4
	for _, results := range byJob {
		size += 8 + 4
		for _, r := range results {
			size += 4 + len(r)
		}
	}
	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(byJob)))
	off := 4
	for jobID, results := range byJob {
		binary.LittleEndian.PutUint64(buf[off:off+8], jobID)
		off += 8
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(results)))
		off += 4
		for _, r := range results {
			binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(r)))
			off += 4
			copy(buf[off:off+len(r)], r)
			off += len(r)
		}
	}
	return buf
}

func decodeMultiJobResults(buf []byte) map[uint64][][]byte {
	nJobs := binary.LittleEndian.Uint32(buf[0:4])
	off := 4
	out := make(map[uint64][][]byte, nJobs)
	for j := uint32(0); j < nJobs; j++ {
		jobID := binary.LittleEndian.Uint64(buf[off : off+8])
		off += 8
		count := binary.LittleEndian.Uint32(buf[off : off+4])
		off += 4
		results := make([][]byte, count)
		for i := range results {
			n := binary.LittleEndian.Uint32(buf[off : off+4])
			off += 4
			results[i] = append([]byte(nil), buf[off:off+int(n)]...)
			off += int(n)
		}
		out[jobID] = results
	}
	return out
}
