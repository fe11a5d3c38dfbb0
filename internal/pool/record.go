// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

package pool

import (
	"fmt"
	"time"
)

// State is the supervisor's view of a worker process.
type State int

const (
	StateStarting State = iota
	StateListening
	StateTerminating
	StateDead
)

// States lists every State in lifecycle order.
var States = []State{StateStarting, StateListening, StateTerminating, StateDead}

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	case StateTerminating:
		return "terminating"
	case StateDead:
		return "dead"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Live reports whether a record in this state counts toward the pool size.
func (s State) Live() bool {
	return s != StateDead
}

// ExitInfo describes how a worker process ended.
type ExitInfo struct {
	// Code is the exit status, -1 when the process was killed by a signal.
	Code int `json:"code"`
	// Signal is the terminating signal name, empty for a normal exit.
	Signal string `json:"signal,omitempty"`
	// Err is the wait error, if any, as text.
	Err string `json:"error,omitempty"`
}

// SignalOrNone returns Signal, or "none" for a normal exit.
func (e ExitInfo) SignalOrNone() string {
	if e.Signal == "" {
		return "none"
	}
	return e.Signal
}

func (e ExitInfo) String() string {
	return fmt.Sprintf("code %d and signal %s", e.Code, e.SignalOrNone())
}

// WorkerRecord is one worker as tracked by the supervisor.
type WorkerRecord struct {
	ID          int        `json:"id"`
	Pid         int        `json:"pid"`
	State       State      `json:"state"`
	Generation  int        `json:"generation"`
	Replaces    int        `json:"replaces,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	ListeningAt *time.Time `json:"listening_at,omitempty"`
	StoppedAt   *time.Time `json:"stopped_at,omitempty"`
	Exit        *ExitInfo  `json:"exit,omitempty"`
}

// Uptime returns how long the worker ran, or has been running at now.
func (r *WorkerRecord) Uptime(now time.Time) time.Duration {
	if r.StoppedAt != nil {
		return r.StoppedAt.Sub(r.StartedAt)
	}
	return now.Sub(r.StartedAt)
}

// Status summarizes the pool for the admin API.
type Status struct {
	Size         int            `json:"size"`
	Live         int            `json:"live"`
	Pending      int            `json:"pending_respawns"`
	States       map[string]int `json:"states"`
	Policy       string         `json:"respawn_policy"`
	ShuttingDown bool           `json:"shutting_down"`
}
