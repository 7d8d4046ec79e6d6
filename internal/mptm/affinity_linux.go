//go:build linux

package mptm

import (
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"
)

// pinToCPU restricts the calling process's scheduling affinity to a
// single core, an optional optimization aimed at reducing cache-line
// bouncing between worker processes. Failures here are
// WarnPlatform-class: the worker keeps running unpinned.
func pinToCPU(core int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(core)

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		slog.Warn("cpu pinning unavailable, continuing unpinned", "core", core, "error", err)
		return fmt.Errorf("%w: sched_setaffinity: %v", ErrWarnPlatform, err)
	}
	return nil
}
