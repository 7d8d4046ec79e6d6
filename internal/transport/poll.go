package transport

import (
	"reflect"
	"time"
)

// PollEntry names one pipe a Poll call should watch for readability.
type PollEntry struct {
	Pipe *Pipe
}

// Poll multiplexes readiness across several pipes at once, mirroring
// the queue process's central poll(2) loop without depending on
// OS-level poll: readiness is tracked by each Pipe's background
// reader, so Poll only has to wait on Go channels.
//
// A negative timeout blocks until at least one pipe is ready. A zero
// timeout performs a single non-blocking scan. Poll returns the number
// of entries that were ready when it returned; ready-bit selection
// happens by re-checking each pipe's queue, so it never consumes a
// message itself (Recv/RecvBlob still must be called to do that).
func Poll(entries []PollEntry, timeout time.Duration) (int, error) {
	if n, err := scanReady(entries); n > 0 || err != nil {
		return n, err
	}
	if timeout == 0 {
		return 0, nil
	}

	cases := make([]reflect.SelectCase, 0, len(entries)+1)
	for _, e := range entries {
		cases = append(cases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(e.Pipe.notify),
		})
	}
	if timeout > 0 {
		cases = append(cases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(time.After(timeout)),
		})
	}

	for {
		reflect.Select(cases)
		// A notify token can be left over from a frame Recv already
		// consumed; with no deadline, keep waiting instead of returning 0.
		n, err := scanReady(entries)
		if n > 0 || err != nil || timeout > 0 {
			return n, err
		}
	}
}

func scanReady(entries []PollEntry) (int, error) {
	ready := 0
	for _, e := range entries {
		n, err := e.Pipe.BytesReadableNonblocking()
		if err != nil {
			// A dead pipe still counts as "ready": the caller's next
			// Recv will surface the error instead of blocking forever.
			ready++
			continue
		}
		if n > 0 {
			ready++
		}
	}
	return ready, nil
}
