// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

/*
Package services adapts master process components to suture.Service.

  - PoolService: starts the worker pool and runs its supervision loop.
    Always terminates the tree when it returns.
  - SignalService: relays SIGINT/SIGTERM to the pool's Shutdown.
  - HTTPServerService: runs the admin HTTP server, with graceful Shutdown
    on context cancellation.
  - EventHubService: runs the websocket hub that streams pool events.

Each wrapper implements fmt.Stringer so suture's log events name it.
*/
package services
