// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

// Package admin serves the master process's admin API: worker records,
// pool status, operator-triggered recycling, a websocket stream of pool
// events and the master's Prometheus metrics. It binds to loopback by
// default and is rate limited per client IP.
package admin
