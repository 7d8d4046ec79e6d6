//go:build !(linux || darwin)

package mptm

import (
	"os"

	"github.com/cwbudde/minuitgrad/internal/transport"
)

// newChildPipe is the two-fd fallback behind the same signature
// pipes_unix.go exposes; see that file for the rationale.
func newChildPipe() (parent *transport.Pipe, extraFiles []*os.File, err error) {
	parent, childRead, childWrite, err := transport.NewPipePair()
	if err != nil {
		return nil, nil, err
	}
	return parent, []*os.File{childRead, childWrite}, nil
}

const childPipeEnv = "MINUITGRAD_PIPE_FDS=2"

// dialChildPipe wraps the child's two inherited descriptors (fd 3 and
// fd 4, per exec.Cmd.ExtraFiles convention) back into a live Pipe.
func dialChildPipe(baseFD uintptr) *transport.Pipe {
	read := os.NewFile(baseFD, "minuitgrad-pipe-read")
	write := os.NewFile(baseFD+1, "minuitgrad-pipe-write")
	return transport.NewPipeFromFiles(read, write)
}
