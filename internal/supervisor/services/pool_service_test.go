// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

package services

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

// fakePool records Start/Serve calls. Serve blocks until Shutdown or ctx
// cancellation unless serveErr is set.
type fakePool struct {
	startErr error
	serveErr error

	starts atomic.Int32
	serves atomic.Int32

	mu       sync.Mutex
	signals  []os.Signal
	stop     chan struct{}
	stopOnce sync.Once
}

func newFakePool() *fakePool {
	return &fakePool{stop: make(chan struct{})}
}

func (p *fakePool) Start(ctx context.Context) error {
	p.starts.Add(1)
	return p.startErr
}

func (p *fakePool) Serve(ctx context.Context) error {
	p.serves.Add(1)
	if p.serveErr != nil {
		return p.serveErr
	}
	select {
	case <-p.stop:
	case <-ctx.Done():
	}
	return nil
}

func (p *fakePool) Shutdown(sig os.Signal) {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	p.mu.Unlock()
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *fakePool) received() []os.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]os.Signal(nil), p.signals...)
}

var (
	_ suture.Service = (*PoolService)(nil)
	_ suture.Service = (*SignalService)(nil)
	_ suture.Service = (*EventHubService)(nil)
)

func TestPoolService_AlwaysTerminatesTree(t *testing.T) {
	startErr := errors.New("pool startup failed")
	serveErr := errors.New("pool not started")

	tests := []struct {
		name    string
		pool    func() *fakePool
		wantErr error
	}{
		{"drained", func() *fakePool {
			p := newFakePool()
			p.Shutdown(syscall.SIGTERM)
			return p
		}, nil},
		{"start failure", func() *fakePool {
			p := newFakePool()
			p.startErr = startErr
			return p
		}, startErr},
		{"serve failure", func() *fakePool {
			p := newFakePool()
			p.serveErr = serveErr
			return p
		}, serveErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.pool()
			err := NewPoolService(p).Serve(context.Background())
			if !errors.Is(err, suture.ErrTerminateSupervisorTree) {
				t.Fatalf("Serve() = %v, want ErrTerminateSupervisorTree", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Serve() = %v, want it to wrap %v", err, tt.wantErr)
			}
		})
	}
}

func TestPoolService_StartsOnce(t *testing.T) {
	p := newFakePool()
	p.Shutdown(syscall.SIGINT)
	svc := NewPoolService(p)

	for i := 0; i < 3; i++ {
		_ = svc.Serve(context.Background())
	}
	if got := p.starts.Load(); got != 1 {
		t.Errorf("Start called %d times, want 1", got)
	}
	if got := p.serves.Load(); got != 3 {
		t.Errorf("Serve called %d times, want 3", got)
	}
	if svc.String() != "worker-pool" {
		t.Errorf("String() = %q", svc.String())
	}
}

func TestSignalService_RelaysEverySignal(t *testing.T) {
	p := newFakePool()
	source := make(chan os.Signal, 2)
	svc := NewSignalServiceWithSource(p, source)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	source <- syscall.SIGINT
	source <- syscall.SIGTERM

	deadline := time.Now().Add(2 * time.Second)
	for len(p.received()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}

	got := p.received()
	if len(got) != 2 || got[0] != syscall.SIGINT || got[1] != syscall.SIGTERM {
		t.Errorf("relayed %v, want [SIGINT SIGTERM]", got)
	}
}

func TestSignalService_ClosedSourceWaitsForCancel(t *testing.T) {
	source := make(chan os.Signal)
	close(source)
	svc := NewSignalServiceWithSource(newFakePool(), source)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() = %v, want context.DeadlineExceeded", err)
	}
}

type fakeHub struct {
	runs atomic.Int32
	err  error
}

func (h *fakeHub) RunWithContext(ctx context.Context) error {
	h.runs.Add(1)
	if h.err != nil {
		return h.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestEventHubService_Serve(t *testing.T) {
	hubErr := errors.New("hub failed")
	tests := []struct {
		name string
		hub  *fakeHub
		want error
	}{
		{"canceled", &fakeHub{}, context.DeadlineExceeded},
		{"hub error", &fakeHub{err: hubErr}, hubErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
			defer cancel()
			svc := NewEventHubService(tt.hub)
			if err := svc.Serve(ctx); !errors.Is(err, tt.want) {
				t.Errorf("Serve() = %v, want %v", err, tt.want)
			}
			if tt.hub.runs.Load() != 1 || svc.String() != "event-hub" {
				t.Errorf("runs = %d, name = %q", tt.hub.runs.Load(), svc.String())
			}
		})
	}
}
