// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

/*
Package pool implements the master side of the pre-fork worker pool.

A Supervisor forks a fixed number of worker processes, waits until every one
of them reports its listener bound, then opens all start gates together.
From then on a single event-loop goroutine owns the pool state: it records
exits, forks exactly one replacement for each unexpected death, and on
Shutdown forwards the received signal once to every live worker without
forking replacements for the resulting exits.

# Record Lifecycle

	Starting -> Listening -> Terminating -> Dead
	    \            \__________________/
	     \________________________________ Dead (unexpected, replaced)

# Respawn Policies

  - always: replace immediately, no cap
  - backoff: exponential delay between consecutive unstable replacements
  - breaker: a circuit breaker pauses replacements while workers keep crashing

# Usage

	sup := pool.New(pool.OptionsFromConfig(cfg.Pool), spawner)
	if err := sup.Start(ctx); err != nil {
		// fatal: every forked worker has already been reaped
	}
	go sup.Serve(ctx)
	...
	sup.Shutdown(syscall.SIGTERM)
*/
package pool
