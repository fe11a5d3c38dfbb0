// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

package pool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/forkpool/internal/config"
	"github.com/tomtom215/forkpool/internal/logging"
	"github.com/tomtom215/forkpool/internal/metrics"
)

var (
	// ErrStartupFailed wraps every Start failure. All forked workers have
	// been reaped when it is returned.
	ErrStartupFailed = errors.New("pool startup failed")

	// ErrUnknownWorker is returned for IDs that are not live records.
	ErrUnknownWorker = errors.New("unknown worker")

	// ErrShuttingDown is returned for requests made after Shutdown.
	ErrShuttingDown = errors.New("pool is shutting down")

	// ErrNotStarted is returned by Serve before a successful Start.
	ErrNotStarted = errors.New("pool not started")
)

// crashLoopThreshold is the number of consecutive unstable exits after
// which a crash loop warning is logged.
const crashLoopThreshold = 5

// Options configures a Supervisor. They are fixed once New returns.
type Options struct {
	// Size is the number of workers to keep alive. Must be >= 1.
	Size int

	// ReadyTimeout bounds how long a worker may take to report its listener
	// bound. Zero disables the bound.
	ReadyTimeout time.Duration

	// ShutdownTimeout is how long to wait after forwarding a shutdown
	// signal before killing survivors. Zero waits forever.
	ShutdownTimeout time.Duration

	// RespawnRetryDelay is the wait after a failed replacement fork.
	RespawnRetryDelay time.Duration

	// StableAfter is the uptime after which an exit counts as stable for
	// the respawn policy.
	StableAfter time.Duration

	// HistorySize is the number of dead records retained.
	HistorySize int

	// Policy decides when replacements are forked. Nil means AlwaysPolicy.
	Policy RespawnPolicy
}

// OptionsFromConfig derives Options from the pool configuration.
func OptionsFromConfig(cfg config.PoolConfig) Options {
	return Options{
		Size:              cfg.Workers(),
		ReadyTimeout:      cfg.ReadyTimeout,
		ShutdownTimeout:   cfg.ShutdownTimeout,
		RespawnRetryDelay: cfg.RespawnRetryDelay,
		StableAfter:       cfg.StableAfter,
		HistorySize:       cfg.HistorySize,
		Policy:            NewPolicy(cfg),
	}
}

type entry struct {
	rec         WorkerRecord
	proc        Process
	exited      chan struct{}
	readyTimer  *time.Timer
	done        func(stable bool)
	intentional bool
	recycled    bool

	// deferredSig is a shutdown signal held back until the worker reports
	// ready. Before that its handlers may not be installed yet.
	deferredSig os.Signal
}

type eventKind int

const (
	evReady eventKind = iota
	evReadyFailed
	evReadyTimeout
	evExit
	evRespawn
)

type loopEvent struct {
	kind eventKind
	id   int
	err  error
	exit ExitInfo
}

type pendingRespawn struct {
	timer *time.Timer
	prev  WorkerRecord
	done  func(stable bool)
}

type recycleRequest struct {
	id    int
	reply chan error
}

// Supervisor maintains a pool of worker processes. All pool state is owned
// by the goroutine running Start and then Serve; other methods communicate
// with it through channels.
type Supervisor struct {
	opts    Options
	spawner Spawner
	log     zerolog.Logger

	events     chan loopEvent
	shutdownCh chan os.Signal
	recycleCh  chan recycleRequest
	stopped    chan struct{}
	stopOnce   sync.Once

	// mu guards the fields below for readers outside the loop. Only the
	// loop goroutine writes them.
	mu           sync.RWMutex
	live         map[int]*entry
	history      []WorkerRecord
	pending      map[int]*pendingRespawn
	started      bool
	serving      bool
	shuttingDown bool

	nextID          int
	nextPending     int
	unstableStreak  int
	crashLoopLogged bool
	killTimer       *time.Timer

	obsMu     sync.RWMutex
	observers []Observer
}

// New creates a Supervisor that forks workers with spawner.
func New(opts Options, spawner Spawner) *Supervisor {
	if opts.Size < 1 {
		opts.Size = 1
	}
	if opts.Policy == nil {
		opts.Policy = AlwaysPolicy{}
	}
	if opts.RespawnRetryDelay <= 0 {
		opts.RespawnRetryDelay = time.Second
	}
	return &Supervisor{
		opts:       opts,
		spawner:    spawner,
		log:        logging.WithComponent("pool"),
		events:     make(chan loopEvent, 4*opts.Size+16),
		shutdownCh: make(chan os.Signal, 1),
		recycleCh:  make(chan recycleRequest),
		stopped:    make(chan struct{}),
		live:       make(map[int]*entry),
		pending:    make(map[int]*pendingRespawn),
	}
}

// Size returns the configured pool size.
func (s *Supervisor) Size() int {
	return s.opts.Size
}

// Subscribe registers o for every subsequent pool event.
func (s *Supervisor) Subscribe(o Observer) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, o)
}

// Done is closed once the pool has fully drained after a shutdown or a
// failed start.
func (s *Supervisor) Done() <-chan struct{} {
	return s.stopped
}

// Start forks the pool and returns once every worker is listening and all
// start gates are open. Any failure is fatal: forked workers are killed and
// reaped, and an error wrapping ErrStartupFailed is returned. A Shutdown
// during startup forwards its signal to the forked workers instead, and the
// error also wraps ErrShuttingDown.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("pool already started")
	}
	s.started = true
	s.mu.Unlock()

	n := s.opts.Size
	begin := time.Now()
	s.log.Info().Int("workers", n).Str("respawn_policy", s.opts.Policy.Name()).Msg("Forking workers")

	for i := 0; i < n; i++ {
		if _, err := s.spawn(0, 0, nil, metrics.ForkInitial); err != nil {
			return s.abortStartup(fmt.Errorf("fork worker %d of %d: %w", i+1, n, err))
		}
	}

	var deadline <-chan time.Time
	if s.opts.ReadyTimeout > 0 {
		t := time.NewTimer(s.opts.ReadyTimeout)
		defer t.Stop()
		deadline = t.C
	}

	for s.countState(StateListening) < n {
		select {
		case ev := <-s.events:
			switch ev.kind {
			case evReady:
				s.markListening(ev.id, false)
			case evReadyFailed:
				return s.abortStartup(fmt.Errorf("worker %d: %w", ev.id, ev.err))
			case evExit:
				if e := s.recordExit(ev.id, ev.exit); e != nil {
					return s.abortStartup(fmt.Errorf("worker %d (pid %d) exited during startup with %s",
						e.rec.ID, e.rec.Pid, ev.exit))
				}
			}
		case <-deadline:
			return s.abortStartup(fmt.Errorf("%d of %d workers listening after %s",
				s.countState(StateListening), n, s.opts.ReadyTimeout))
		case sig := <-s.shutdownCh:
			return s.abortStartupOnSignal(sig, deadline)
		case <-ctx.Done():
			return s.abortStartup(ctx.Err())
		}
	}

	for _, e := range s.sortedLive() {
		if err := e.proc.Release(); err != nil {
			return s.abortStartup(fmt.Errorf("open start gate of worker %d: %w", e.rec.ID, err))
		}
	}

	elapsed := time.Since(begin)
	metrics.RecordStartup(elapsed)
	s.log.Info().Int("workers", n).Dur("elapsed", elapsed).Msg("All workers listening, start gates open")
	return nil
}

// abortStartup kills and reaps every forked worker.
func (s *Supervisor) abortStartup(cause error) error {
	s.log.Error().Err(cause).Int("forked", len(s.live)).Msg("Pool startup failed, reaping forked workers")

	s.mu.Lock()
	s.shuttingDown = true
	s.mu.Unlock()

	for _, e := range s.sortedLive() {
		e.intentional = true
		if err := e.proc.Kill(); err != nil {
			s.log.Debug().Err(err).Int("worker_id", e.rec.ID).Msg("Kill failed")
		}
	}
	for len(s.live) > 0 {
		if ev := <-s.events; ev.kind == evExit {
			s.recordExit(ev.id, ev.exit)
		}
	}

	s.updateGauges()
	s.finish()
	return fmt.Errorf("%w: %w", ErrStartupFailed, cause)
}

// abortStartupOnSignal forwards sig to the workers forked so far and waits
// for them. Workers still starting get sig once they report ready, or are
// killed when the startup deadline passes first. Stragglers are killed
// after ShutdownTimeout.
func (s *Supervisor) abortStartupOnSignal(sig os.Signal, deadline <-chan time.Time) error {
	s.beginShutdown(sig)
	for len(s.live) > 0 {
		var killC <-chan time.Time
		if s.killTimer != nil {
			killC = s.killTimer.C
		}
		select {
		case ev := <-s.events:
			switch ev.kind {
			case evReady:
				s.deliverDeferred(ev.id)
			case evReadyFailed:
				s.killDeferred(ev.id, "Worker failed to become ready during shutdown, killing it")
			case evExit:
				s.onWorkerExit(ev.id, ev.exit)
			}
		case <-deadline:
			deadline = nil
			for _, e := range s.sortedLive() {
				s.killDeferred(e.rec.ID, "Worker not listening within ready timeout during shutdown, killing it")
			}
		case <-killC:
			s.killTimer = nil
			s.forceKill()
		}
	}

	s.finish()
	return fmt.Errorf("%w: %w: received %s", ErrStartupFailed, ErrShuttingDown, signalName(sig))
}

// Serve runs the supervision loop until the pool has drained after a
// shutdown. Canceling ctx is treated as a SIGTERM shutdown.
func (s *Supervisor) Serve(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case !s.started:
		s.mu.Unlock()
		return ErrNotStarted
	case s.serving:
		s.mu.Unlock()
		return errors.New("pool already serving")
	}
	s.serving = true
	s.mu.Unlock()

	ctxDone := ctx.Done()
	for {
		if s.shuttingDown && len(s.live) == 0 {
			s.finish()
			s.log.Info().Msg("All workers exited, pool stopped")
			return nil
		}

		var killC <-chan time.Time
		if s.killTimer != nil {
			killC = s.killTimer.C
		}

		select {
		case ev := <-s.events:
			s.handle(ev)
		case sig := <-s.shutdownCh:
			s.beginShutdown(sig)
		case req := <-s.recycleCh:
			req.reply <- s.recycle(req.id)
		case <-killC:
			s.killTimer = nil
			s.forceKill()
		case <-ctxDone:
			ctxDone = nil
			if !s.shuttingDown {
				s.log.Info().Msg("Pool context canceled, shutting down workers")
				s.beginShutdown(syscall.SIGTERM)
			}
		}
	}
}

func (s *Supervisor) finish() {
	s.stopOnce.Do(func() {
		if s.killTimer != nil {
			s.killTimer.Stop()
			s.killTimer = nil
		}
		close(s.stopped)
	})
}

// Shutdown forwards sig to every live worker and stops replacing workers.
// Calls after the first are logged and ignored.
func (s *Supervisor) Shutdown(sig os.Signal) {
	select {
	case s.shutdownCh <- sig:
	default:
		s.log.Info().Str("signal", signalName(sig)).Msg("Shutdown already requested, ignoring signal")
	}
}

// Recycle kills worker id with SIGKILL. The exit is handled as an
// unexpected death, so a replacement is forked. It returns ErrNotStarted
// until Serve runs.
func (s *Supervisor) Recycle(ctx context.Context, id int) error {
	s.mu.RLock()
	serving := s.serving
	s.mu.RUnlock()
	if !serving {
		return ErrNotStarted
	}

	req := recycleRequest{id: id, reply: make(chan error, 1)}
	select {
	case s.recycleCh <- req:
	case <-s.stopped:
		return ErrShuttingDown
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Records returns a snapshot of live and retained dead records, by ID.
func (s *Supervisor) Records() []WorkerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]WorkerRecord, 0, len(s.live)+len(s.history))
	for _, e := range s.live {
		out = append(out, e.rec)
	}
	out = append(out, s.history...)
	slices.SortFunc(out, func(a, b WorkerRecord) int { return a.ID - b.ID })
	return out
}

// Status returns pool counters.
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	states := make(map[string]int, len(States))
	for _, st := range States {
		states[st.String()] = 0
	}
	for _, e := range s.live {
		states[e.rec.State.String()]++
	}
	states[StateDead.String()] = len(s.history)

	return Status{
		Size:         s.opts.Size,
		Live:         len(s.live),
		Pending:      len(s.pending),
		States:       states,
		Policy:       s.opts.Policy.Name(),
		ShuttingDown: s.shuttingDown,
	}
}

func (s *Supervisor) handle(ev loopEvent) {
	switch ev.kind {
	case evReady:
		s.deliverDeferred(ev.id)
		s.markListening(ev.id, true)
	case evReadyFailed:
		if e := s.live[ev.id]; e != nil && (e.rec.State == StateStarting || e.deferredSig != nil) {
			s.log.Warn().Err(ev.err).Int("worker_id", ev.id).Int("pid", e.rec.Pid).Msg("Worker failed to become ready, killing it")
			_ = e.proc.Kill()
		}
	case evReadyTimeout:
		if e := s.live[ev.id]; e != nil && (e.rec.State == StateStarting || e.deferredSig != nil) {
			s.log.Warn().Int("worker_id", ev.id).Int("pid", e.rec.Pid).Dur("ready_timeout", s.opts.ReadyTimeout).
				Msg("Worker not listening within ready timeout, killing it")
			_ = e.proc.Kill()
		}
	case evExit:
		s.onWorkerExit(ev.id, ev.exit)
	case evRespawn:
		s.onRespawnDue(ev.id)
	}
}

func (s *Supervisor) spawn(generation, replaces int, done func(bool), reason string) (*entry, error) {
	s.nextID++
	id := s.nextID

	proc, err := s.spawner.Spawn(id)
	metrics.RecordFork(reason, err)
	if err != nil {
		return nil, err
	}

	e := &entry{
		rec: WorkerRecord{
			ID:         id,
			Pid:        proc.Pid(),
			State:      StateStarting,
			Generation: generation,
			Replaces:   replaces,
			StartedAt:  time.Now(),
		},
		proc:   proc,
		exited: make(chan struct{}),
		done:   done,
	}

	s.mu.Lock()
	s.live[id] = e
	s.mu.Unlock()

	go s.waitExit(e)
	go s.watchReady(e)

	s.log.Info().Int("worker_id", id).Int("pid", e.rec.Pid).Int("generation", generation).Str("reason", reason).Msg("Worker forked")
	s.publish(Event{Type: EventForked, WorkerID: id, Pid: e.rec.Pid, State: StateStarting.String()})
	s.updateGauges()
	return e, nil
}

func (s *Supervisor) waitExit(e *entry) {
	exit := e.proc.Wait()
	close(e.exited)
	s.send(loopEvent{kind: evExit, id: e.rec.ID, exit: exit})
}

func (s *Supervisor) watchReady(e *entry) {
	select {
	case err, ok := <-e.proc.Ready():
		if !ok {
			return
		}
		kind := evReady
		if err != nil {
			kind = evReadyFailed
		}
		s.send(loopEvent{kind: kind, id: e.rec.ID, err: err})
	case <-e.exited:
	}
}

// send delivers ev to the loop unless the pool has stopped.
func (s *Supervisor) send(ev loopEvent) {
	select {
	case s.events <- ev:
	case <-s.stopped:
	}
}

func (s *Supervisor) markListening(id int, release bool) {
	e := s.live[id]
	if e == nil || e.rec.State != StateStarting {
		return
	}
	if e.readyTimer != nil {
		e.readyTimer.Stop()
	}

	now := time.Now()
	s.mu.Lock()
	e.rec.State = StateListening
	e.rec.ListeningAt = &now
	s.mu.Unlock()

	if release {
		if err := e.proc.Release(); err != nil {
			s.log.Error().Err(err).Int("worker_id", id).Msg("Failed to open start gate, killing worker")
			_ = e.proc.Kill()
			return
		}
	}

	s.log.Info().Int("worker_id", id).Int("pid", e.rec.Pid).Dur("startup", now.Sub(e.rec.StartedAt)).Msg("Worker listening")
	s.publish(Event{Type: EventListening, WorkerID: id, Pid: e.rec.Pid, State: StateListening.String()})
	s.updateGauges()
}

// recordExit moves a live record to history. It returns nil for IDs that
// are not live.
func (s *Supervisor) recordExit(id int, exit ExitInfo) *entry {
	e := s.live[id]
	if e == nil {
		return nil
	}
	if e.readyTimer != nil {
		e.readyTimer.Stop()
	}

	now := time.Now()
	s.mu.Lock()
	delete(s.live, id)
	e.rec.State = StateDead
	e.rec.Exit = &exit
	e.rec.StoppedAt = &now
	s.history = append(s.history, e.rec)
	if over := len(s.history) - s.opts.HistorySize; over > 0 {
		s.history = slices.Clone(s.history[over:])
	}
	s.mu.Unlock()
	return e
}

func (s *Supervisor) onWorkerExit(id int, exit ExitInfo) {
	e := s.recordExit(id, exit)
	if e == nil {
		return
	}

	intentional := e.intentional || s.shuttingDown
	uptime := e.rec.Uptime(time.Now())

	s.log.Info().Int("worker_id", id).Int("pid", e.rec.Pid).Int("code", exit.Code).Str("signal", exit.SignalOrNone()).
		Bool("intentional", intentional).Dur("uptime", uptime).Str("wait_error", exit.Err).
		Msgf("Worker %d died with %s", e.rec.Pid, exit)
	metrics.RecordExit(intentional, exit.Signal)
	s.publish(Event{Type: EventExited, WorkerID: id, Pid: e.rec.Pid, State: StateDead.String(), Exit: &exit, Intentional: intentional})
	s.updateGauges()

	if intentional {
		return
	}

	stable := e.recycled || uptime >= s.opts.StableAfter
	if e.done != nil {
		e.done(stable)
	}
	s.trackCrashLoop(stable)
	s.scheduleRespawn(e.rec)
}

func (s *Supervisor) trackCrashLoop(stable bool) {
	if stable {
		s.unstableStreak = 0
		s.crashLoopLogged = false
		return
	}
	s.unstableStreak++
	if s.unstableStreak >= crashLoopThreshold && !s.crashLoopLogged {
		s.crashLoopLogged = true
		s.log.Warn().Int("consecutive_unstable_exits", s.unstableStreak).Str("respawn_policy", s.opts.Policy.Name()).
			Dur("stable_after", s.opts.StableAfter).Msg("Workers are crash looping")
	}
}

// scheduleRespawn asks the policy for admission and forks now or later.
func (s *Supervisor) scheduleRespawn(prev WorkerRecord) {
	delay, done := s.opts.Policy.Admit()
	metrics.RecordRespawnDelay(delay)
	s.publish(Event{Type: EventRespawn, WorkerID: prev.ID, Pid: prev.Pid, Delay: delay})

	if delay <= 0 && done != nil {
		s.respawn(prev, done)
		return
	}
	if done == nil {
		s.log.Warn().Int("replaces", prev.ID).Dur("delay", delay).Str("respawn_policy", s.opts.Policy.Name()).
			Msg("Respawn refused by policy, asking again later")
	} else {
		s.log.Info().Int("replaces", prev.ID).Dur("delay", delay).Msg("Respawn delayed by policy")
	}
	s.deferRespawn(prev, done, delay)
}

func (s *Supervisor) deferRespawn(prev WorkerRecord, done func(bool), delay time.Duration) {
	s.nextPending++
	key := s.nextPending
	p := &pendingRespawn{prev: prev, done: done}
	p.timer = time.AfterFunc(delay, func() {
		s.send(loopEvent{kind: evRespawn, id: key})
	})

	s.mu.Lock()
	s.pending[key] = p
	s.mu.Unlock()
}

func (s *Supervisor) onRespawnDue(key int) {
	p := s.pending[key]
	if p == nil {
		return
	}
	s.mu.Lock()
	delete(s.pending, key)
	s.mu.Unlock()

	if s.shuttingDown {
		return
	}
	if p.done == nil {
		s.scheduleRespawn(p.prev)
		return
	}
	s.respawn(p.prev, p.done)
}

func (s *Supervisor) respawn(prev WorkerRecord, done func(bool)) {
	if s.shuttingDown {
		return
	}

	s.log.Info().Int("replaces", prev.ID).Msg("Forking a new worker...")
	e, err := s.spawn(prev.Generation+1, prev.ID, done, metrics.ForkRespawn)
	if err != nil {
		s.log.Error().Err(err).Int("replaces", prev.ID).Dur("retry_in", s.opts.RespawnRetryDelay).
			Msg("Failed to fork replacement worker")
		s.deferRespawn(prev, done, s.opts.RespawnRetryDelay)
		return
	}

	if s.opts.ReadyTimeout > 0 {
		id := e.rec.ID
		e.readyTimer = time.AfterFunc(s.opts.ReadyTimeout, func() {
			s.send(loopEvent{kind: evReadyTimeout, id: id})
		})
	}
}

func (s *Supervisor) beginShutdown(sig os.Signal) {
	name := signalName(sig)
	if s.shuttingDown {
		s.log.Info().Str("signal", name).Msg("Shutdown already in progress, ignoring signal")
		return
	}

	s.mu.Lock()
	s.shuttingDown = true
	pending := s.pending
	s.pending = make(map[int]*pendingRespawn)
	s.mu.Unlock()

	for _, p := range pending {
		p.timer.Stop()
	}

	live := s.sortedLive()
	metrics.RecordShutdownSignal(name)
	s.log.Info().Str("signal", name).Int("workers", len(live)).Int("canceled_respawns", len(pending)).
		Msgf("Master received %s, forwarding to workers", name)
	s.publish(Event{Type: EventShutdown, Signal: name})

	for _, e := range live {
		starting := e.rec.State == StateStarting
		e.intentional = true
		s.mu.Lock()
		e.rec.State = StateTerminating
		s.mu.Unlock()

		if starting {
			// The ready timer stays armed so a worker that never reports
			// ready is still killed.
			e.deferredSig = sig
			s.log.Debug().Int("worker_id", e.rec.ID).Str("signal", name).Msg("Worker still starting, signal deferred until ready")
		} else {
			if e.readyTimer != nil {
				e.readyTimer.Stop()
			}
			if err := e.proc.Signal(sig); err != nil {
				s.log.Debug().Err(err).Int("worker_id", e.rec.ID).Msg("Signal delivery failed")
			}
		}
		s.publish(Event{Type: EventTerminating, WorkerID: e.rec.ID, Pid: e.rec.Pid, State: StateTerminating.String(), Signal: name})
	}
	s.updateGauges()

	if s.opts.ShutdownTimeout > 0 && len(live) > 0 {
		s.killTimer = time.NewTimer(s.opts.ShutdownTimeout)
	}
}

// deliverDeferred sends the shutdown signal held back from worker id, if
// any.
func (s *Supervisor) deliverDeferred(id int) {
	e := s.live[id]
	if e == nil || e.deferredSig == nil {
		return
	}
	if e.readyTimer != nil {
		e.readyTimer.Stop()
	}
	sig := e.deferredSig
	e.deferredSig = nil
	s.log.Debug().Int("worker_id", id).Str("signal", signalName(sig)).Msg("Worker ready, delivering deferred signal")
	if err := e.proc.Signal(sig); err != nil {
		s.log.Debug().Err(err).Int("worker_id", id).Msg("Signal delivery failed")
	}
}

// killDeferred kills worker id if it is still waiting for a deferred signal.
func (s *Supervisor) killDeferred(id int, msg string) {
	e := s.live[id]
	if e == nil || e.deferredSig == nil {
		return
	}
	e.deferredSig = nil
	s.log.Warn().Int("worker_id", id).Int("pid", e.rec.Pid).Msg(msg)
	_ = e.proc.Kill()
}

func (s *Supervisor) forceKill() {
	for _, e := range s.sortedLive() {
		s.log.Warn().Int("worker_id", e.rec.ID).Int("pid", e.rec.Pid).Dur("shutdown_timeout", s.opts.ShutdownTimeout).
			Msg("Worker still running after shutdown timeout, killing it")
		_ = e.proc.Kill()
	}
}

func (s *Supervisor) recycle(id int) error {
	if s.shuttingDown {
		return ErrShuttingDown
	}
	e := s.live[id]
	if e == nil {
		return fmt.Errorf("%w: %d", ErrUnknownWorker, id)
	}

	e.recycled = true
	metrics.PoolRecycles.Inc()
	s.log.Warn().Int("worker_id", id).Int("pid", e.rec.Pid).Msg("Recycling worker on request")
	if err := e.proc.Kill(); err != nil {
		return fmt.Errorf("kill worker %d: %w", id, err)
	}
	return nil
}

func (s *Supervisor) countState(st State) int {
	n := 0
	for _, e := range s.live {
		if e.rec.State == st {
			n++
		}
	}
	return n
}

func (s *Supervisor) sortedLive() []*entry {
	out := make([]*entry, 0, len(s.live))
	for _, e := range s.live {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *entry) int { return a.rec.ID - b.rec.ID })
	return out
}

func (s *Supervisor) publish(ev Event) {
	ev.Time = time.Now()
	s.obsMu.RLock()
	defer s.obsMu.RUnlock()
	for _, o := range s.observers {
		o.OnPoolEvent(ev)
	}
}

func (s *Supervisor) updateGauges() {
	s.mu.RLock()
	counts := make(map[string]int, len(States))
	for _, e := range s.live {
		counts[e.rec.State.String()]++
	}
	counts[StateDead.String()] = len(s.history)
	s.mu.RUnlock()

	names := make([]string, len(States))
	for i, st := range States {
		names[i] = st.String()
	}
	metrics.SetWorkerStates(names, counts)
}
