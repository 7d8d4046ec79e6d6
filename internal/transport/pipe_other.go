//go:build !(linux || darwin)

package transport

import (
	"fmt"
	"os"
)

// NewPipePair is the portable fallback backend: two unidirectional
// os.Pipe pairs stitched into one full-duplex channel, for platforms
// without AF_UNIX socketpair support. It returns a live Pipe for the
// calling (parent) process and the two raw files to hand the
// about-to-be-spawned child via exec.Cmd.ExtraFiles (in read-then-write
// order); the child wraps them with NewPipeFromFiles after re-exec.
func NewPipePair() (parentSide *Pipe, childRead, childWrite *os.File, err error) {
	parentRead, childWriteEnd, err := os.Pipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("transport: pipe: %w", err)
	}
	childReadEnd, parentWrite, err := os.Pipe()
	if err != nil {
		parentRead.Close()
		childWriteEnd.Close()
		return nil, nil, nil, fmt.Errorf("transport: pipe: %w", err)
	}

	parentSide = newPipe(parentRead, parentWrite)
	return parentSide, childReadEnd, childWriteEnd, nil
}

// NewPipeFromFiles wraps the two inherited ExtraFiles descriptors (by
// convention fd 3 and fd 4 in the child process) as a live, full-duplex
// Pipe on platforms using the two-pipe fallback backend.
func NewPipeFromFiles(read, write *os.File) *Pipe {
	return newPipe(read, write)
}

// NewLoopbackPair builds two endpoints wired to each other within a
// single process, for tests that want to exercise real framing/poll
// behavior without forking a child.
func NewLoopbackPair() (a, b *Pipe, err error) {
	r1, w1, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("transport: pipe: %w", err)
	}
	r2, w2, err := os.Pipe()
	if err != nil {
		r1.Close()
		w1.Close()
		return nil, nil, fmt.Errorf("transport: pipe: %w", err)
	}
	return newPipe(r1, w2), newPipe(r2, w1), nil
}
