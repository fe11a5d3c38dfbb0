// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

/*
Package worker implements the worker role: one OS process that serves the
example HTTP workload on the pool's shared port.

# Lifecycle

	Initializing -> Listening -> ShuttingDown -> Terminated

A worker obtains its listener (inherited from the master on fd 5, or bound
with SO_REUSEPORT), reports readiness to the master, then blocks on its
start gate until the master has seen every worker of the pool listening.
SIGINT and SIGTERM are handled identically: the worker logs receipt, stops
accepting and exits with status 0.

# Handoff Protocol

The master passes two pipes to each worker through exec.Cmd.ExtraFiles:

	fd 3  ready pipe, worker -> master: "ready <pid>\n"
	fd 4  gate pipe,  master -> worker: "serve\n"
	fd 5  listening socket (inherit mode only)

After the gate opens, EOF on fd 4 means the master is gone and the worker
shuts down as if it had been sent SIGTERM.

# Drain Policies

  - immediate: http.Server.Close, in-flight requests are severed
  - drain: http.Server.Shutdown bounded by the drain timeout, then Close

# Routes

	GET /         "Hello World from Worker <pid>" after the workload delay
	GET /busy     "Busy response from Worker <pid>" after the workload delay
	GET /healthz  JSON pid, worker id and state
	GET /metrics  Prometheus metrics of this worker process
*/
package worker
