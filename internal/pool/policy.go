// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

package pool

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/forkpool/internal/config"
	"github.com/tomtom215/forkpool/internal/logging"
)

// RespawnPolicy decides when a replacement for a dead worker is forked.
// It is only called from the supervisor loop.
type RespawnPolicy interface {
	Name() string

	// Admit is consulted before each replacement fork. A nil done means the
	// replacement is refused for now and Admit must be asked again after
	// delay. Otherwise the replacement is forked after delay and done is
	// called once with its outcome when it exits.
	Admit() (delay time.Duration, done func(stable bool))
}

// NewPolicy builds the policy named by cfg.RespawnPolicy.
func NewPolicy(cfg config.PoolConfig) RespawnPolicy {
	switch cfg.RespawnPolicy {
	case config.RespawnBackoff:
		return NewBackoffPolicy(cfg.BackoffInitial, cfg.BackoffMax)
	case config.RespawnBreaker:
		return NewBreakerPolicy(cfg.BreakerFailures, cfg.BreakerTimeout)
	default:
		return AlwaysPolicy{}
	}
}

func noopDone(bool) {}

// AlwaysPolicy replaces every dead worker immediately, without limit.
type AlwaysPolicy struct{}

func (AlwaysPolicy) Name() string { return config.RespawnAlways }

func (AlwaysPolicy) Admit() (time.Duration, func(bool)) { return 0, noopDone }

// BackoffPolicy delays replacements exponentially while replacements keep
// dying before they become stable. A stable replacement resets the delay.
type BackoffPolicy struct {
	b *backoff.ExponentialBackOff
}

// NewBackoffPolicy returns a policy starting at initial and capped at max.
func NewBackoffPolicy(initial, maxDelay time.Duration) *BackoffPolicy {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(initial),
		backoff.WithMaxInterval(maxDelay),
		backoff.WithRandomizationFactor(0),
		backoff.WithMultiplier(2),
		backoff.WithMaxElapsedTime(0),
	)
	return &BackoffPolicy{b: b}
}

func (p *BackoffPolicy) Name() string { return config.RespawnBackoff }

func (p *BackoffPolicy) Admit() (time.Duration, func(bool)) {
	return p.b.NextBackOff(), func(stable bool) {
		if stable {
			p.b.Reset()
		}
	}
}

var errUnstableWorker = errors.New("worker exited before becoming stable")

// BreakerPolicy stops replacing workers once failures consecutive
// replacements died unstable, retrying one replacement after timeout.
type BreakerPolicy struct {
	cb      *gobreaker.TwoStepCircuitBreaker[struct{}]
	timeout time.Duration
}

// NewBreakerPolicy returns a breaker that opens after failures unstable
// replacements and half-opens after timeout.
func NewBreakerPolicy(failures uint32, timeout time.Duration) *BreakerPolicy {
	log := logging.WithComponent("respawn-breaker")
	cb := gobreaker.NewTwoStepCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "respawn",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			ev := log.Info()
			if to == gobreaker.StateOpen {
				ev = log.Warn().Dur("retry_after", timeout)
			}
			ev.Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Respawn circuit breaker state changed")
		},
	})
	return &BreakerPolicy{cb: cb, timeout: timeout}
}

func (p *BreakerPolicy) Name() string { return config.RespawnBreaker }

func (p *BreakerPolicy) Admit() (time.Duration, func(bool)) {
	done, err := p.cb.Allow()
	if err != nil {
		return p.timeout, nil
	}
	return 0, func(stable bool) {
		if stable {
			done(nil)
		} else {
			done(errUnstableWorker)
		}
	}
}

// State returns the breaker state name.
func (p *BreakerPolicy) State() string {
	return p.cb.State().String()
}
