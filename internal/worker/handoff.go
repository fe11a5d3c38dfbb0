// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Environment variables set by the master on every worker it forks.
const (
	// EnvWorkerID marks the process as a worker and carries its record ID.
	EnvWorkerID = "FORKPOOL_WORKER_ID"

	// EnvListenFD names the inherited listening socket fd (inherit mode).
	EnvListenFD = "FORKPOOL_LISTEN_FD"
)

// File descriptors of the handoff pipes and the inherited socket, in the
// order the master appends them to exec.Cmd.ExtraFiles.
const (
	ReadyFD    = 3
	GateFD     = 4
	ListenerFD = 5
)

const (
	readyWord   = "ready"
	GateMessage = "serve\n"
)

// ErrMasterGone is returned when the gate pipe reaches EOF.
var ErrMasterGone = errors.New("master closed the handoff pipe")

// IDFromEnv returns the worker ID from EnvWorkerID. ok is false when the
// process is not a worker.
func IDFromEnv() (id int, ok bool, err error) {
	raw, ok := os.LookupEnv(EnvWorkerID)
	if !ok {
		return 0, false, nil
	}
	id, err = strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, true, fmt.Errorf("invalid %s %q", EnvWorkerID, raw)
	}
	return id, true, nil
}

// FormatReady builds the readiness line a worker writes on the ready pipe.
func FormatReady(pid int) string {
	return readyWord + " " + strconv.Itoa(pid) + "\n"
}

// ParseReady parses a readiness line and returns the reported pid.
func ParseReady(line string) (int, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 || fields[0] != readyWord {
		return 0, fmt.Errorf("malformed ready message %q", strings.TrimSpace(line))
	}
	pid, err := strconv.Atoi(fields[1])
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("malformed ready pid %q", fields[1])
	}
	return pid, nil
}

// Handoff is the worker end of the master handoff pipes.
type Handoff struct {
	ready io.WriteCloser
	gate  io.ReadCloser
	r     *bufio.Reader
}

// NewHandoff wraps an already-open pair of pipe ends.
func NewHandoff(ready io.WriteCloser, gate io.ReadCloser) *Handoff {
	return &Handoff{ready: ready, gate: gate, r: bufio.NewReader(gate)}
}

// HandoffFromFDs opens the pipes the master passed on ReadyFD and GateFD.
func HandoffFromFDs() (*Handoff, error) {
	ready := os.NewFile(uintptr(ReadyFD), "forkpool-ready")
	gate := os.NewFile(uintptr(GateFD), "forkpool-gate")
	if ready == nil || gate == nil {
		return nil, fmt.Errorf("handoff descriptors %d/%d are not open", ReadyFD, GateFD)
	}
	return NewHandoff(ready, gate), nil
}

// ReportReady tells the master the listener is bound. The ready pipe is
// closed afterwards; it carries exactly one message.
func (h *Handoff) ReportReady(pid int) error {
	_, err := io.WriteString(h.ready, FormatReady(pid))
	if cerr := h.ready.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("report ready: %w", err)
	}
	return nil
}

// AwaitGate blocks until the master opens the start gate, the master goes
// away (ErrMasterGone) or ctx is done.
func (h *Handoff) AwaitGate(ctx context.Context) error {
	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := h.r.ReadString('\n')
		done <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		_ = h.gate.Close()
		return ctx.Err()
	case res := <-done:
		if errors.Is(res.err, io.EOF) {
			return ErrMasterGone
		}
		if res.err != nil {
			return fmt.Errorf("await gate: %w", res.err)
		}
		if res.line != GateMessage {
			return fmt.Errorf("unexpected gate message %q", strings.TrimSpace(res.line))
		}
		return nil
	}
}

// WatchMaster returns a channel closed once the gate pipe reports EOF or an
// error. Call only after AwaitGate succeeded.
func (h *Handoff) WatchMaster() <-chan struct{} {
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		_, _ = io.Copy(io.Discard, h.r)
	}()
	return gone
}

// Close releases both pipe ends.
func (h *Handoff) Close() error {
	_ = h.ready.Close()
	return h.gate.Close()
}
