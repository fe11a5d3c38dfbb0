// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

package pool

import "os"

// Process is a forked worker. The Supervisor owns every Process it spawns;
// Wait is called exactly once, from a dedicated goroutine.
type Process interface {
	Pid() int

	// Ready delivers one value: nil once the worker reported its listener
	// bound, or an error if it cannot become ready.
	Ready() <-chan error

	// Release opens the worker's start gate.
	Release() error

	// Signal delivers sig. Signaling an exited process is a no-op.
	Signal(sig os.Signal) error

	// Kill sends SIGKILL.
	Kill() error

	// Wait blocks until the process exits.
	Wait() ExitInfo
}

// Spawner forks worker processes.
type Spawner interface {
	Spawn(id int) (Process, error)
}
