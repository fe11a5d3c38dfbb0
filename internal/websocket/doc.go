// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

/*
Package websocket streams worker pool events to admin API subscribers.

The Hub subscribes to the pool supervisor as a pool.Observer and fans
every event out to connected clients. Each Client runs a read pump
(pings, disconnect detection) and a write pump (events, keepalives).

Messages are JSON envelopes:

	{"type": "snapshot",   "data": [ ...worker records... ]}
	{"type": "pool_event", "data": {"type": "exited", "worker_id": 3, "pid": 4242, ...}}
	{"type": "pong",       "data": null}

A snapshot of the current worker records is sent first on every new
connection. Slow subscribers whose buffer fills are disconnected rather
than blocking the hub, and the hub never blocks the pool loop.
*/
package websocket
