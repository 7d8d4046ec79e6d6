package mptm

import "errors"

// Errors are grouped by whether a process can recover and keep
// serving other jobs (Warn-class) or must tear the whole manager down
// (Fatal-class).
var (
	// ErrFatalProtocol means a frame arrived with an unexpected tag for
	// the link it arrived on, or a payload failed to decode. The
	// manager that observes this tears itself down.
	ErrFatalProtocol = errors.New("mptm: fatal protocol violation")

	// ErrFatalLifecycle means a lifecycle transition was requested out
	// of order (e.g. a second Activate on an already active manager;
	// calls before Activate or after Terminate return
	// ErrManagerNotActive instead).
	ErrFatalLifecycle = errors.New("mptm: fatal lifecycle violation")

	// ErrWarnPlatform means a platform-specific feature (CPU pinning,
	// the socketpair fast path) was unavailable and the manager
	// degraded to a portable fallback instead of failing.
	ErrWarnPlatform = errors.New("mptm: platform feature unavailable, degraded")

	// ErrWarnShutdown means a worker exited (crash or otherwise) while
	// the queue was not expecting it. This is bookkeeping only: the
	// in-flight task is lost and its job cycle will read a gap, but
	// MPTM never retries a task on another worker.
	ErrWarnShutdown = errors.New("mptm: worker exited unexpectedly")

	// ErrNotRegistered is returned when a job ID has no matching entry
	// in the job registry.
	ErrNotRegistered = errors.New("mptm: job not registered")

	// ErrManagerNotActive is returned by master operations attempted
	// before Activate or after Terminate.
	ErrManagerNotActive = errors.New("mptm: manager is not active")
)
