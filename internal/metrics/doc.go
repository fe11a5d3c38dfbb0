// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

/*
Package metrics provides Prometheus collectors for the master and its workers.

Collectors are registered on the default registry with promauto. Master and
workers are separate processes, so each process exposes its own registry:
the master on the admin listener, each worker on the shared port.

# Available Metrics

Pool (master):
  - forkpool_worker_forks_total: forks by reason (initial, respawn)
  - forkpool_worker_fork_failures_total: failed forks
  - forkpool_worker_exits_total: exits by intentional and signal
  - forkpool_workers: records by state (gauge)
  - forkpool_shutdown_signals_total: forwarded shutdown signals
  - forkpool_respawn_delay_seconds: respawn policy delays (histogram)
  - forkpool_worker_recycles_total: operator-requested kills
  - forkpool_startup_duration_seconds: initial pool readiness (histogram)
  - forkpool_event_subscribers: admin websocket subscribers (gauge)

Worker:
  - forkpool_http_requests_total: requests by method, route, status_code
  - forkpool_http_request_duration_seconds: latency by method, route
  - forkpool_http_requests_in_flight: active requests (gauge)

Scrape a worker through the shared port (any worker may answer):

	curl http://localhost:5000/metrics
*/
package metrics
