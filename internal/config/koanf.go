// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"forkpool.yaml",
	"forkpool.yml",
	"/etc/forkpool/config.yaml",
	"/etc/forkpool/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Pool: PoolConfig{
			Size:              0, // 0 = runtime.NumCPU()
			ReadyTimeout:      10 * time.Second,
			ShutdownTimeout:   0, // wait for workers indefinitely
			RespawnPolicy:     RespawnAlways,
			RespawnRetryDelay: time.Second,
			StableAfter:       10 * time.Second,
			BackoffInitial:    500 * time.Millisecond,
			BackoffMax:        30 * time.Second,
			BreakerFailures:   5,
			BreakerTimeout:    30 * time.Second,
			HistorySize:       32,
		},
		Server: ServerConfig{
			Host:       "0.0.0.0",
			Port:       5000,
			ListenMode: ListenInherit,
		},
		Workload: WorkloadConfig{
			Delay: 5 * time.Second,
		},
		Worker: WorkerConfig{
			DrainPolicy:  DrainImmediate,
			DrainTimeout: 10 * time.Second,
		},
		Admin: AdminConfig{
			Enabled:   true,
			Host:      "127.0.0.1",
			Port:      5050,
			RateLimit: 120,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (explicit path, CONFIG_PATH, or DefaultConfigPaths)
//  3. Environment Variables: Override any setting
//  4. Overrides: koanf paths set by the caller (command-line flags)
//
// An explicit path that does not exist is an error; a missing default file is not.
func LoadWithKoanf(path string, overrides map[string]interface{}) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := path
	if configPath == "" {
		configPath = findConfigFile()
	} else if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("config file %s: %w", configPath, err)
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables
	// FORKPOOL_WORKERS -> pool.size
	// HTTP_PORT -> server.port
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Layer 4: Explicit overrides (highest priority)
	for key, val := range overrides {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	// Pool mappings
	"forkpool_workers":             "pool.size",
	"forkpool_ready_timeout":       "pool.ready_timeout",
	"forkpool_shutdown_timeout":    "pool.shutdown_timeout",
	"forkpool_respawn_policy":      "pool.respawn_policy",
	"forkpool_respawn_retry_delay": "pool.respawn_retry_delay",
	"forkpool_stable_after":        "pool.stable_after",
	"forkpool_backoff_initial":     "pool.backoff_initial",
	"forkpool_backoff_max":         "pool.backoff_max",
	"forkpool_breaker_failures":    "pool.breaker_failures",
	"forkpool_breaker_timeout":     "pool.breaker_timeout",
	"forkpool_history_size":        "pool.history_size",

	// Server mappings
	"http_host":            "server.host",
	"http_port":            "server.port",
	"port":                 "server.port", // plain PORT, as set by most PaaS platforms
	"forkpool_listen_mode": "server.listen_mode",

	// Workload and worker mappings
	"forkpool_delay":         "workload.delay",
	"forkpool_drain_policy":  "worker.drain_policy",
	"forkpool_drain_timeout": "worker.drain_timeout",

	// Admin mappings
	"admin_enabled":    "admin.enabled",
	"admin_host":       "admin.host",
	"admin_port":       "admin.port",
	"admin_rate_limit": "admin.rate_limit",

	// Logging mappings
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - FORKPOOL_WORKERS -> pool.size
//   - FORKPOOL_DELAY -> workload.delay
//   - HTTP_PORT -> server.port
//   - LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}
