// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

/*
Package supervisor runs the master process's long-lived services under a
suture v4 supervisor tree.

# Layout

	forkpool
	├── pool-layer
	│   ├── PoolService    (starts the pool, runs its supervision loop)
	│   └── SignalService  (relays SIGINT/SIGTERM to the pool)
	└── admin-layer        (only when admin.enabled)
	    ├── HTTPServerService (admin API)
	    └── EventHubService   (websocket fan-out of pool events)

Worker processes are not suture services. They are owned by the pool
loop, which forks, reaps and replaces them itself; suture only restarts
the goroutines of the master.

# Termination

When the pool has drained after a shutdown signal, PoolService returns an
error wrapping suture.ErrTerminateSupervisorTree. The pool layer stops and
propagates the error to the root, which stops the admin layer and returns
it from Serve. A failed pool start terminates the tree the same way, with
the error also wrapping pool.ErrStartupFailed.

# Logging

Supervisor events (service panics, restarts, backoff) are logged through
sutureslog. The master passes an slog.Logger backed by the zerolog adapter
in internal/logging, so they land in the same JSON stream as pool events.

# Usage

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddPoolService(services.NewPoolService(sup))
	tree.AddPoolService(services.NewSignalService(sup))
	tree.AddAdminService(services.NewHTTPServerService(adminServer, 5*time.Second))
	tree.AddAdminService(services.NewEventHubService(hub))

	err := <-tree.ServeBackground(ctx)
*/
package supervisor
