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
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/forkpool/internal/config"
	"github.com/tomtom215/forkpool/internal/logging"
)

// State is the lifecycle state of a worker process.
type State int32

const (
	StateInitializing State = iota
	StateListening
	StateShuttingDown
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateListening:
		return "listening"
	case StateShuttingDown:
		return "shutting_down"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Options configures a Worker.
type Options struct {
	ID           int
	Pid          int
	Delay        time.Duration
	DrainPolicy  string
	DrainTimeout time.Duration
}

// Worker serves the example workload on a shared listener.
type Worker struct {
	opts    Options
	state   atomic.Int32
	started time.Time
	handler http.Handler
	log     zerolog.Logger
}

// New creates a worker in StateInitializing.
func New(opts Options) *Worker {
	if opts.DrainPolicy == "" {
		opts.DrainPolicy = config.DrainImmediate
	}
	w := &Worker{
		opts:    opts,
		started: time.Now(),
		log:     logging.With().Str("component", "worker").Int("worker_id", opts.ID).Logger(),
	}
	w.handler = w.routes()
	return w
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
}

// MarkListening records that the listener is bound. Called before the
// readiness report, so the state is observable before traffic arrives.
func (w *Worker) MarkListening() {
	w.state.CompareAndSwap(int32(StateInitializing), int32(StateListening))
}

// Handler returns the worker's HTTP handler.
func (w *Worker) Handler() http.Handler {
	return w.handler
}

// Serve accepts connections on ln until ctx is done, then stops according
// to the drain policy. A nil return means a clean shutdown.
func (w *Worker) Serve(ctx context.Context, ln net.Listener) error {
	w.MarkListening()

	srv := &http.Server{
		Handler:           w.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		w.setState(StateTerminated)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	w.setState(StateShuttingDown)
	stopErr := w.stop(srv)
	<-errCh
	w.setState(StateTerminated)
	return stopErr
}

func (w *Worker) stop(srv *http.Server) error {
	if w.opts.DrainPolicy != config.DrainGraceful {
		return srv.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.opts.DrainTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		w.log.Warn().Err(err).Dur("drain_timeout", w.opts.DrainTimeout).Msg("Drain timed out, closing remaining connections")
		return srv.Close()
	}
	return nil
}

// wait blocks for the workload delay or until ctx is done.
func (w *Worker) wait(ctx context.Context) error {
	if w.opts.Delay <= 0 {
		return nil
	}
	t := time.NewTimer(w.opts.Delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
