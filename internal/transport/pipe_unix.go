//go:build linux || darwin

package transport

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// NewPipePair creates one full-duplex channel backed by a single
// AF_UNIX SOCK_STREAM socketpair: one fd per side instead of the
// fallback's two. It returns a live
// Pipe for the calling (parent) process and the raw file to hand the
// about-to-be-spawned child via exec.Cmd.ExtraFiles; the child wraps
// its inherited end with NewPipeFromFD after re-exec.
func NewPipePair() (parentSide *Pipe, childFile *os.File, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("transport: socketpair: %w", err)
	}

	parentFile := os.NewFile(uintptr(fds[0]), "minuitgrad-pipe-parent")
	childFile = os.NewFile(uintptr(fds[1]), "minuitgrad-pipe-child")

	parentSide = newPipe(parentFile, parentFile)
	return parentSide, childFile, nil
}

// NewPipeFromFD wraps an inherited ExtraFiles descriptor (by convention
// fd 3+index in the child process) as a live, full-duplex Pipe.
func NewPipeFromFD(fd uintptr) *Pipe {
	f := os.NewFile(fd, "minuitgrad-pipe-inherited")
	return newPipe(f, f)
}

// NewLoopbackPair builds two endpoints of the same socketpair wired to
// each other within a single process, for tests that want to exercise
// real framing/poll behavior without forking a child.
func NewLoopbackPair() (a, b *Pipe, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("transport: socketpair: %w", err)
	}
	fa := os.NewFile(uintptr(fds[0]), "minuitgrad-loopback-a")
	fb := os.NewFile(uintptr(fds[1]), "minuitgrad-loopback-b")
	return newPipe(fa, fa), newPipe(fb, fb), nil
}
