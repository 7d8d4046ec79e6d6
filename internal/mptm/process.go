package mptm

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/cwbudde/minuitgrad/internal/transport"
)

// roleEnv names the environment variable a re-exec'd process reads to
// learn which of the manager's loops to run. Go has no fork(): the
// worker and queue processes are realized by re-executing the current
// binary with a role flag and the pipe file descriptors passed through
// exec.Cmd.ExtraFiles, the same shape ExtraFiles is used for elsewhere
// in the ecosystem to hand a child process a pre-opened resource.
const roleEnv = "MINUITGRAD_ROLE"

const (
	roleQueue  = "queue"
	roleWorker = "worker"
)

// childProcess is a spawned queue or worker: the exec.Cmd plus the
// parent-owned pipe endpoint connected to it.
type childProcess struct {
	cmd  *exec.Cmd
	pipe *transport.Pipe
}

// spawnChild re-execs the current binary with role set in the
// environment and one pipe's child end attached via ExtraFiles, coreID
// threaded through for the child to pin itself to (best effort).
func spawnChild(role string, coreID int) (*childProcess, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("mptm: resolve self executable: %w", err)
	}

	parent, extraFiles, err := newChildPipe()
	if err != nil {
		return nil, fmt.Errorf("mptm: create child pipe: %w", err)
	}

	cmd := exec.Command(exePath)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("%s=%s", roleEnv, role),
		childPipeEnv,
		fmt.Sprintf("MINUITGRAD_CORE_ID=%d", coreID),
	)
	cmd.ExtraFiles = extraFiles
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		parent.Close()
		return nil, fmt.Errorf("mptm: start %s process: %w", role, err)
	}

	// The child now has its own copy of the ExtraFiles descriptors; the
	// parent's copies (kept open only so they'd survive until Start)
	// are no longer needed on this side.
	for _, f := range extraFiles {
		f.Close()
	}

	parent.SetWaiter(func() (*os.ProcessState, error) {
		return cmd.ProcessState, cmd.Wait()
	})

	return &childProcess{cmd: cmd, pipe: parent}, nil
}

// RunRoleIfChild is called at the very top of main(). If the process
// was re-exec'd as a queue or worker, it runs that loop and returns
// true once the loop ends (a loop error exits the process with status
// 1); otherwise it returns false immediately so the normal master/CLI
// path continues.
func RunRoleIfChild() (ran bool) {
	role := os.Getenv(roleEnv)
	switch role {
	case roleQueue:
		runQueueProcess()
		return true
	case roleWorker:
		runWorkerProcess()
		return true
	default:
		return false
	}
}
