//go:build !linux

package mptm

import "log/slog"

// pinToCPU is a no-op on platforms without sched_setaffinity. Workers
// run unpinned, degrading silently rather than failing.
func pinToCPU(core int) error {
	slog.Debug("cpu pinning not supported on this platform", "core", core)
	return nil
}
