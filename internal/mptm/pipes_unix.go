//go:build linux || darwin

package mptm

import (
	"os"

	"github.com/cwbudde/minuitgrad/internal/transport"
)

// newChildPipe creates one parent-owned endpoint plus the ExtraFiles
// list to attach to the about-to-be-spawned child, hiding the
// platform's choice of one-fd-socketpair vs two-fd-pipe backend behind
// a single signature mptm's process spawning code can use unconditionally.
func newChildPipe() (parent *transport.Pipe, extraFiles []*os.File, err error) {
	parent, childFile, err := transport.NewPipePair()
	if err != nil {
		return nil, nil, err
	}
	return parent, []*os.File{childFile}, nil
}

// childPipeEnv describes, for the spawned child, how to reconstruct
// its endpoint from inherited file descriptors.
const childPipeEnv = "MINUITGRAD_PIPE_FDS=1"

// dialChildPipe wraps the child's inherited descriptors (fd 3 onward,
// per exec.Cmd.ExtraFiles convention) back into a live Pipe.
func dialChildPipe(baseFD uintptr) *transport.Pipe {
	return transport.NewPipeFromFD(baseFD)
}
