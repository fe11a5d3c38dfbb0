// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

/*
Package config provides centralized configuration management for Forkpool.

Configuration is loaded by Koanf v2 from layered sources, highest priority last:

 1. Built-in defaults (defaultConfig)
 2. YAML file: --config, CONFIG_PATH, forkpool.yaml or /etc/forkpool/config.yaml
 3. Environment variables (explicit mapping table, unknown variables ignored)
 4. Command-line overrides passed by cmd/forkpool

The master and every worker resolve the same Config: workers are re-executed
with the master's argv and environment.

# Environment Variables

Pool (PoolConfig):
  - FORKPOOL_WORKERS: Worker count, 0 = one per CPU (default: 0)
  - FORKPOOL_READY_TIMEOUT: Max time for a worker to bind (default: 10s)
  - FORKPOOL_SHUTDOWN_TIMEOUT: Kill workers still alive after this, 0 = never (default: 0)
  - FORKPOOL_RESPAWN_POLICY: always, backoff, breaker (default: always)
  - FORKPOOL_RESPAWN_RETRY_DELAY: Retry delay after a failed replacement fork (default: 1s)
  - FORKPOOL_STABLE_AFTER: Uptime after which a worker counts as healthy (default: 10s)
  - FORKPOOL_BACKOFF_INITIAL / FORKPOOL_BACKOFF_MAX: backoff policy bounds (default: 500ms / 30s)
  - FORKPOOL_BREAKER_FAILURES / FORKPOOL_BREAKER_TIMEOUT: breaker policy (default: 5 / 30s)
  - FORKPOOL_HISTORY_SIZE: Dead records kept for the admin API (default: 32)

Shared listener (ServerConfig):
  - HTTP_HOST: Bind address (default: 0.0.0.0)
  - HTTP_PORT or PORT: Listen port (default: 5000)
  - FORKPOOL_LISTEN_MODE: inherit or reuseport (default: inherit)

Workers:
  - FORKPOOL_DELAY: Example workload delay (default: 5s)
  - FORKPOOL_DRAIN_POLICY: immediate or drain (default: immediate)
  - FORKPOOL_DRAIN_TIMEOUT: Bound for the drain policy (default: 10s)

Admin server (master only):
  - ADMIN_ENABLED, ADMIN_HOST, ADMIN_PORT (default: true, 127.0.0.1, 5050)
  - ADMIN_RATE_LIMIT: Requests per minute per client, 0 disables (default: 120)

Logging:
  - LOG_LEVEL: trace, debug, info, warn, error (default: info)
  - LOG_FORMAT: json, console (default: json)
  - LOG_CALLER: true/false (default: false)

# Validation

Struct tags are checked with go-playground/validator; cross-field rules
(policy parameters, admin port collisions, log settings) are checked by
hand. Load returns the first failure wrapped in a descriptive error.
*/
package config
