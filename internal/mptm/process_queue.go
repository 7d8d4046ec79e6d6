package mptm

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/cwbudde/minuitgrad/internal/transport"
)

// runQueueProcess is the entry point for a re-exec'd queue process: it
// dials the pipe inherited from the master, spawns its own pool of
// worker children (the master never talks to workers directly; the
// queue sits between them), and runs the dispatcher until TagTerminate.
func runQueueProcess() {
	masterPipe := dialChildPipe(3)

	numWorkers, err := strconv.Atoi(os.Getenv("MINUITGRAD_NUM_WORKERS"))
	if err != nil || numWorkers < 1 {
		slog.Error("queue process started without a valid worker count", "error", err)
		os.Exit(1)
	}

	children := make([]*childProcess, 0, numWorkers)
	workerPipes := make([]*transport.Pipe, 0, numWorkers)
	for i := 0; i < numWorkers; i++ {
		child, err := spawnChild(roleWorker, i)
		if err != nil {
			slog.Error("queue failed spawning worker", "index", i, "error", err)
			for _, c := range children {
				c.pipe.Close()
			}
			os.Exit(1)
		}
		children = append(children, child)
		workerPipes = append(workerPipes, child.pipe)
	}

	d := newDispatcher(masterPipe, workerPipes)
	if err := d.run(); err != nil {
		slog.Error("queue dispatcher exited with error", "error", err)
		os.Exit(1)
	}
}
