// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/forkpool/internal/config"
	"github.com/tomtom215/forkpool/internal/logging"
)

// RunProcess runs the worker role until SIGINT/SIGTERM or loss of the
// master. It returns nil on every orderly shutdown so the process exits 0.
//
// signals should be subscribed with NotifyShutdown before anything else in
// the process runs, so a signal forwarded during startup is not fatal. A
// nil channel subscribes here.
func RunProcess(ctx context.Context, cfg *config.Config, id int, signals <-chan os.Signal) error {
	if signals == nil {
		ch, stop := NotifyShutdown()
		defer stop()
		signals = ch
	}

	pid := os.Getpid()
	log := logging.With().Str("component", "worker").Int("worker_id", id).Logger()

	handoff, err := HandoffFromFDs()
	if err != nil {
		return err
	}
	defer handoff.Close()

	ln, err := openListener(ctx, cfg)
	if err != nil {
		return err
	}

	w := New(Options{
		ID:           id,
		Pid:          pid,
		Delay:        cfg.Workload.Delay,
		DrainPolicy:  cfg.Worker.DrainPolicy,
		DrainTimeout: cfg.Worker.DrainTimeout,
	})
	w.MarkListening()

	log.Info().Str("addr", ln.Addr().String()).Str("listen_mode", cfg.Server.ListenMode).
		Msgf("Worker process %d is listening on %s", pid, ln.Addr())

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		select {
		case sig := <-signals:
			log.Info().Str("signal", signalName(sig)).
				Msgf("Worker process %d received %s signal. Shutting down...", pid, signalName(sig))
			cancel(fmt.Errorf("received %s", signalName(sig)))
		case <-runCtx.Done():
		}
	}()

	// Report nothing if a shutdown signal already arrived during setup.
	if runCtx.Err() != nil {
		_ = ln.Close()
		return nil
	}
	if err := handoff.ReportReady(pid); err != nil {
		_ = ln.Close()
		return err
	}

	if err := handoff.AwaitGate(runCtx); err != nil {
		_ = ln.Close()
		switch {
		case errors.Is(err, ErrMasterGone):
			log.Warn().Msg("Master exited before opening the start gate, shutting down")
			return nil
		case runCtx.Err() != nil:
			return nil
		default:
			return err
		}
	}

	go func() {
		select {
		case <-handoff.WatchMaster():
			log.Warn().Msg("Master handoff pipe closed, shutting down")
			cancel(ErrMasterGone)
		case <-runCtx.Done():
		}
	}()

	err = w.Serve(runCtx, ln)
	log.Info().Str("drain_policy", cfg.Worker.DrainPolicy).AnErr("cause", context.Cause(runCtx)).Msg("Worker stopped")
	return err
}

// NotifyShutdown subscribes to SIGINT and SIGTERM. stop releases the
// subscription.
func NotifyShutdown() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	return ch, func() { signal.Stop(ch) }
}

func openListener(ctx context.Context, cfg *config.Config) (net.Listener, error) {
	if cfg.Server.ListenMode == config.ListenReusePort {
		return Listen(ctx, cfg.Server.Addr(), true)
	}
	return InheritedListener()
}

func signalName(sig os.Signal) string {
	switch sig {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return sig.String()
	}
}
