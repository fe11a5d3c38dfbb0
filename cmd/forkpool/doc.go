// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

// Command forkpool runs a pre-fork HTTP worker pool.
//
// The master process binds the HTTP port, forks one worker per CPU by
// re-executing its own binary, and waits until every worker is listening
// before letting any of them serve. A worker that dies is replaced; SIGINT
// or SIGTERM sent to the master is forwarded to every worker, after which
// the master exits once they have all gone.
//
// The same binary runs both roles. A process started with FORKPOOL_WORKER_ID
// in its environment is a worker; the master sets it, along with the
// handoff pipes on fds 3 and 4 and, in inherit mode, the listening socket
// on fd 5.
//
// # Configuration
//
// Settings are layered (highest priority wins):
//   - command-line flags
//   - environment variables (FORKPOOL_WORKERS, HTTP_PORT, FORKPOOL_DELAY, ...)
//   - a YAML file (--config, CONFIG_PATH, ./forkpool.yaml or /etc/forkpool/config.yaml)
//   - built-in defaults
//
// # Example
//
//	forkpool --workers 4 --port 5000 --delay 5s
//	curl localhost:5000/          # Hello World from Worker <pid>
//	curl localhost:5050/api/v1/workers
//	kill -TERM <master pid>       # forwarded to all workers
package main
