// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

package services

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/forkpool/internal/logging"
)

// ShutdownTarget is satisfied by *pool.Supervisor.
type ShutdownTarget interface {
	Shutdown(sig os.Signal)
}

// SignalService relays SIGINT and SIGTERM received by the master to the
// pool. Every signal is relayed; the pool ignores all but the first.
type SignalService struct {
	target ShutdownTarget
	source <-chan os.Signal
	name   string
}

// NewSignalService subscribes to SIGINT and SIGTERM on each Serve call.
func NewSignalService(target ShutdownTarget) *SignalService {
	return &SignalService{target: target, name: "signal-relay"}
}

// NewSignalServiceWithSource relays signals read from source instead of
// subscribing to the process's signals.
func NewSignalServiceWithSource(target ShutdownTarget, source <-chan os.Signal) *SignalService {
	return &SignalService{target: target, source: source, name: "signal-relay"}
}

// Serve implements suture.Service.
func (s *SignalService) Serve(ctx context.Context) error {
	source := s.source
	if source == nil {
		ch := make(chan os.Signal, 2)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		source = ch
	}

	log := logging.WithComponent(s.name)
	for {
		select {
		case sig, ok := <-source:
			if !ok {
				<-ctx.Done()
				return ctx.Err()
			}
			log.Debug().Str("signal", sig.String()).Msg("Relaying signal to worker pool")
			s.target.Shutdown(sig)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *SignalService) String() string {
	return s.name
}
