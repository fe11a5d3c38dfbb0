// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

package pool

import (
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"
)

// fakeProcess is an in-memory Process. It becomes ready on becomeReady and
// exits on exit, Kill, or (unless ignoreSignals) on the first Signal.
type fakeProcess struct {
	id  int
	pid int

	ready    chan error
	exitCh   chan ExitInfo
	exitOnce sync.Once

	mu            sync.Mutex
	released      bool
	releaseCount  int
	signals       []os.Signal
	killed        bool
	ignoreSignals bool
}

func newFakeProcess(id int) *fakeProcess {
	return &fakeProcess{
		id:     id,
		pid:    10000 + id,
		ready:  make(chan error, 1),
		exitCh: make(chan ExitInfo, 1),
	}
}

func (p *fakeProcess) Pid() int            { return p.pid }
func (p *fakeProcess) Ready() <-chan error { return p.ready }

func (p *fakeProcess) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = true
	p.releaseCount++
	return nil
}

func (p *fakeProcess) Signal(sig os.Signal) error {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	ignore := p.ignoreSignals
	p.mu.Unlock()
	if !ignore {
		p.exit(ExitInfo{Code: 0})
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.exit(ExitInfo{Code: -1, Signal: signalName(syscall.SIGKILL)})
	return nil
}

func (p *fakeProcess) Wait() ExitInfo { return <-p.exitCh }

func (p *fakeProcess) exit(info ExitInfo) {
	p.exitOnce.Do(func() { p.exitCh <- info })
}

func (p *fakeProcess) crash(code int) { p.exit(ExitInfo{Code: code}) }

// becomeReady reports readiness unless it was already reported.
func (p *fakeProcess) becomeReady() {
	select {
	case p.ready <- nil:
	default:
	}
}

func (p *fakeProcess) failReady(err error) {
	select {
	case p.ready <- err:
	default:
	}
}

func (p *fakeProcess) isReleased() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

func (p *fakeProcess) releases() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.releaseCount
}

func (p *fakeProcess) isKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

func (p *fakeProcess) signalCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.signals)
}

func (p *fakeProcess) firstSignal() os.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.signals) == 0 {
		return nil
	}
	return p.signals[0]
}

// fakeSpawner hands out fakeProcesses and publishes each one on spawned.
type fakeSpawner struct {
	mu            sync.Mutex
	procs         []*fakeProcess
	autoReady     bool
	ignoreSignals bool
	failCalls     map[int]bool // 1-based Spawn call numbers that fail
	calls         int

	spawned chan *fakeProcess
}

func newFakeSpawner(autoReady bool) *fakeSpawner {
	return &fakeSpawner{
		autoReady: autoReady,
		failCalls: map[int]bool{},
		spawned:   make(chan *fakeProcess, 256),
	}
}

var errFork = errors.New("fork: resource temporarily unavailable")

func (s *fakeSpawner) Spawn(id int) (Process, error) {
	s.mu.Lock()
	s.calls++
	if s.failCalls[s.calls] {
		s.mu.Unlock()
		return nil, errFork
	}
	p := newFakeProcess(id)
	p.ignoreSignals = s.ignoreSignals
	s.procs = append(s.procs, p)
	auto := s.autoReady
	s.mu.Unlock()

	if auto {
		p.becomeReady()
	}
	s.spawned <- p
	return p, nil
}

func (s *fakeSpawner) failOn(calls ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range calls {
		s.failCalls[c] = true
	}
}

func (s *fakeSpawner) setAutoReady(v bool) {
	s.mu.Lock()
	s.autoReady = v
	s.mu.Unlock()
}

func (s *fakeSpawner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

func (s *fakeSpawner) proc(i int) *fakeProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.procs[i]
}

// next waits for the next spawned process.
func (s *fakeSpawner) next(t *testing.T) *fakeProcess {
	t.Helper()
	select {
	case p := <-s.spawned:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a spawn")
		return nil
	}
}
