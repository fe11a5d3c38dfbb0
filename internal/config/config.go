// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

package config

import (
	"fmt"
	"runtime"
	"time"
)

// Config holds all application configuration for the master and its workers.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all settings
//  2. Config File: Optional YAML config file (forkpool.yaml)
//  3. Environment Variables: Override any setting via environment variables
//  4. Command-line flags: Applied by cmd/forkpool via ApplyOverrides
//
// Workers are re-executed with the master's argv and environment, so both
// roles resolve the same Config from the same sources.
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access from multiple goroutines.
type Config struct {
	Pool     PoolConfig     `koanf:"pool"`
	Server   ServerConfig   `koanf:"server"`
	Workload WorkloadConfig `koanf:"workload"`
	Worker   WorkerConfig   `koanf:"worker"`
	Admin    AdminConfig    `koanf:"admin"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// Respawn policies for replacing workers that exit unexpectedly.
const (
	RespawnAlways  = "always"  // fork a replacement immediately, no cap
	RespawnBackoff = "backoff" // exponential delay, reset after a stable worker
	RespawnBreaker = "breaker" // circuit breaker over crash-looping workers
)

// Listen modes for sharing the port between worker processes.
const (
	ListenInherit   = "inherit"   // master binds, workers inherit the descriptor
	ListenReusePort = "reuseport" // every worker binds with SO_REUSEPORT
)

// Drain policies applied by a worker on SIGINT/SIGTERM.
const (
	DrainImmediate = "immediate" // close the listener and all connections
	DrainGraceful  = "drain"     // wait for in-flight requests up to DrainTimeout
)

// PoolConfig holds supervisor settings.
type PoolConfig struct {
	// Size is the desired number of workers. 0 means one per logical CPU.
	Size int `koanf:"size" validate:"gte=0,lte=1024"`

	// ReadyTimeout bounds how long a forked worker may take to report its
	// listener bound. During startup an expired timeout is fatal.
	ReadyTimeout time.Duration `koanf:"ready_timeout" validate:"gt=0"`

	// ShutdownTimeout is how long the master waits for workers after
	// forwarding a shutdown signal before killing them. 0 waits forever.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`

	RespawnPolicy     string        `koanf:"respawn_policy" validate:"oneof=always backoff breaker"`
	RespawnRetryDelay time.Duration `koanf:"respawn_retry_delay" validate:"gt=0"`

	// StableAfter is the uptime after which an exiting worker counts as
	// healthy for the backoff and breaker policies.
	StableAfter time.Duration `koanf:"stable_after" validate:"gte=0"`

	BackoffInitial  time.Duration `koanf:"backoff_initial" validate:"gte=0"`
	BackoffMax      time.Duration `koanf:"backoff_max" validate:"gte=0"`
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gte=0"`

	// HistorySize is the number of dead worker records kept for diagnostics.
	HistorySize int `koanf:"history_size" validate:"gte=0"`
}

// Workers returns the effective pool size.
func (p PoolConfig) Workers() int {
	if p.Size > 0 {
		return p.Size
	}
	return runtime.NumCPU()
}

// ServerConfig holds the shared listening endpoint.
type ServerConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port" validate:"gte=1,lte=65535"`
	ListenMode string `koanf:"listen_mode" validate:"oneof=inherit reuseport"`
}

// Addr returns host:port for net.Listen.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// WorkloadConfig holds the example workload settings.
type WorkloadConfig struct {
	// Delay is how long every example request waits before responding.
	Delay time.Duration `koanf:"delay" validate:"gte=0"`
}

// WorkerConfig holds per-worker shutdown behavior.
type WorkerConfig struct {
	DrainPolicy  string        `koanf:"drain_policy" validate:"oneof=immediate drain"`
	DrainTimeout time.Duration `koanf:"drain_timeout" validate:"gte=0"`
}

// AdminConfig holds the master-only admin HTTP server settings.
type AdminConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Host      string `koanf:"host"`
	Port      int    `koanf:"port" validate:"gte=0,lte=65535"`
	RateLimit int    `koanf:"rate_limit" validate:"gte=0"` // requests per minute per IP, 0 disables
}

// Addr returns host:port for the admin server.
func (a AdminConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, the optional config file and the
// environment. It is the entry point used by both roles.
func Load() (*Config, error) {
	return LoadWithKoanf("", nil)
}
