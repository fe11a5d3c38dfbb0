// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validate is safe for concurrent use and caches struct metadata.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that configuration values are present and consistent.
func (c *Config) Validate() error {
	if err := validateTags(c); err != nil {
		return err
	}

	if err := c.validatePool(); err != nil {
		return err
	}

	if err := c.validateAdmin(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateTags runs the struct-tag rules and flattens the first failure
// into a message naming the koanf path.
func validateTags(c *Config) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s failed %q", fieldPath(fe.Namespace()), fe.Tag())
		if fe.Param() != "" {
			msg += fmt.Sprintf(" (%s)", fe.Param())
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// fieldPath turns "Config.Pool.ReadyTimeout" into "Pool.ReadyTimeout".
func fieldPath(namespace string) string {
	return strings.TrimPrefix(namespace, "Config.")
}

// validatePool validates cross-field pool settings
func (c *Config) validatePool() error {
	switch c.Pool.RespawnPolicy {
	case RespawnBackoff:
		if c.Pool.BackoffInitial <= 0 {
			return fmt.Errorf("FORKPOOL_BACKOFF_INITIAL must be positive when FORKPOOL_RESPAWN_POLICY=backoff")
		}
		if c.Pool.BackoffMax < c.Pool.BackoffInitial {
			return fmt.Errorf("FORKPOOL_BACKOFF_MAX must not be less than FORKPOOL_BACKOFF_INITIAL")
		}
	case RespawnBreaker:
		if c.Pool.BreakerFailures == 0 {
			return fmt.Errorf("FORKPOOL_BREAKER_FAILURES must be at least 1 when FORKPOOL_RESPAWN_POLICY=breaker")
		}
		if c.Pool.BreakerTimeout <= 0 {
			return fmt.Errorf("FORKPOOL_BREAKER_TIMEOUT must be positive when FORKPOOL_RESPAWN_POLICY=breaker")
		}
	}
	return nil
}

// validateAdmin validates the admin server configuration (only if enabled)
func (c *Config) validateAdmin() error {
	if !c.Admin.Enabled {
		return nil
	}
	if c.Admin.Port == 0 {
		return fmt.Errorf("ADMIN_PORT is required when ADMIN_ENABLED=true")
	}
	if c.Admin.Port == c.Server.Port && c.Admin.Host == c.Server.Host {
		return fmt.Errorf("ADMIN_PORT must differ from HTTP_PORT")
	}
	return nil
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format == "" {
		return nil
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
