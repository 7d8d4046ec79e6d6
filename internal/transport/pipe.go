// Package transport implements the bidirectional, poll-capable byte
// channel between two processes that the task manager routes every
// message through. It supports typed framed messages, blob send/recv,
// explicit flush, and a select-based multiplexed poll, with a
// shared-memory-style unix-socket backend on platforms that support it
// and a plain-pipe fallback elsewhere.
package transport

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
)

// Tag identifies the kind of a framed message. Tag values are defined
// per message alphabet by the mptm package; transport treats them as
// opaque 4-byte integers.
type Tag uint32

// frame is one fully-read message: a tag plus its payload bytes.
type frame struct {
	tag     Tag
	payload []byte
}

// Pipe is one endpoint of a bidirectional channel. Each endpoint is
// exclusively owned by the process that reads/writes it after fork;
// sharing a Pipe across processes is a programming error.
type Pipe struct {
	read  *os.File
	write *os.File
	bw    *bufio.Writer

	mu     sync.Mutex
	queue  []frame
	err    error
	notify chan struct{}

	// waiter, when set, is called by Close to collect the exit status
	// of the child process on the other end of this pipe (only the
	// parent-side endpoint of a forked pipe sets this).
	waiter func() (*os.ProcessState, error)
}

func newPipe(read, write *os.File) *Pipe {
	p := &Pipe{
		read:   read,
		write:  write,
		bw:     bufio.NewWriter(write),
		notify: make(chan struct{}, 1),
	}
	go p.readLoop()
	return p
}

// SetWaiter attaches the child-process wait function used by Close to
// report the exit status when called on the parent side.
func (p *Pipe) SetWaiter(waiter func() (*os.ProcessState, error)) {
	p.waiter = waiter
}

func (p *Pipe) readLoop() {
	header := make([]byte, 8)
	for {
		if _, err := io.ReadFull(p.read, header); err != nil {
			p.fail(err)
			return
		}
		tag := Tag(binary.LittleEndian.Uint32(header[0:4]))
		length := binary.LittleEndian.Uint32(header[4:8])

		payload := make([]byte, length)
		if length > 0 {
			if _, err := io.ReadFull(p.read, payload); err != nil {
				p.fail(err)
				return
			}
		}

		p.mu.Lock()
		p.queue = append(p.queue, frame{tag: tag, payload: payload})
		p.mu.Unlock()
		p.signal()
	}
}

func (p *Pipe) fail(err error) {
	p.mu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.mu.Unlock()
	p.signal()
}

func (p *Pipe) signal() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Send frames a tagged message and writes it to the buffered write
// side. The write is not committed until Flush is called.
func (p *Pipe) Send(tag Tag, payload []byte) error {
	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(tag))
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(payload)))

	if _, err := p.bw.Write(header[:]); err != nil {
		return fmt.Errorf("transport: send header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := p.bw.Write(payload); err != nil {
			return fmt.Errorf("transport: send payload: %w", err)
		}
	}
	return nil
}

// SendBlob sends an untagged byte blob, reusing the framed layout with
// TagBlob so the reader can still delimit it exactly.
func (p *Pipe) SendBlob(payload []byte) error {
	return p.Send(TagBlob, payload)
}

// Flush commits everything written by Send to the underlying channel.
func (p *Pipe) Flush() error {
	if err := p.bw.Flush(); err != nil {
		return fmt.Errorf("transport: flush: %w", err)
	}
	return nil
}

// Recv blocks until a full framed message is available and returns it.
// It consumes exactly the bytes written by the matching Send; a framing
// mismatch on the wire surfaces here as a fatal error.
func (p *Pipe) Recv() (Tag, []byte, error) {
	for {
		p.mu.Lock()
		if len(p.queue) > 0 {
			f := p.queue[0]
			p.queue = p.queue[1:]
			p.mu.Unlock()
			return f.tag, f.payload, nil
		}
		err := p.err
		p.mu.Unlock()
		if err != nil {
			return 0, nil, fmt.Errorf("transport: recv: %w", err)
		}
		<-p.notify
	}
}

// RecvBlob is Recv restricted to TagBlob frames, erroring on any other tag.
func (p *Pipe) RecvBlob() ([]byte, error) {
	tag, payload, err := p.Recv()
	if err != nil {
		return nil, err
	}
	if tag != TagBlob {
		return nil, fmt.Errorf("transport: expected blob, got tag %d", tag)
	}
	return payload, nil
}

// Good reports whether the pipe has not yet observed a fatal read error
// (EOF, framing violation, or closed peer).
func (p *Pipe) Good() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err == nil
}

// BytesReadableNonblocking reports how many fully-decoded frames are
// queued and ready for Recv without blocking. Framing already happens
// in the background reader, so this counts frames rather than raw
// bytes; callers doing flow control should treat a non-zero count as
// "at least one Recv will return immediately".
func (p *Pipe) BytesReadableNonblocking() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return 0, fmt.Errorf("transport: %w", p.err)
	}
	return len(p.queue), nil
}

// Close closes both ends of this endpoint and, when a waiter was
// attached, returns the child process's exit status.
func (p *Pipe) Close() (*os.ProcessState, error) {
	p.write.Close()
	if p.read != p.write {
		p.read.Close()
	}
	if p.waiter != nil {
		return p.waiter()
	}
	return nil, nil
}

// ErrBackendUnavailable is returned by a transport backend constructor
// when the host platform cannot provide it (a WarnPlatform-class
// condition; callers fall back to the portable backend instead of
// failing).
var ErrBackendUnavailable = fmt.Errorf("transport: backend unavailable on this platform")
