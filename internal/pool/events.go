// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

package pool

import "time"

// EventType names a pool lifecycle transition.
type EventType string

const (
	EventForked      EventType = "forked"
	EventListening   EventType = "listening"
	EventTerminating EventType = "terminating"
	EventExited      EventType = "exited"
	EventRespawn     EventType = "respawn"
	EventShutdown    EventType = "shutdown"
)

// Event is published to observers on every lifecycle transition.
type Event struct {
	Type     EventType `json:"type"`
	Time     time.Time `json:"time"`
	WorkerID int       `json:"worker_id,omitempty"`
	Pid      int       `json:"pid,omitempty"`
	State    string    `json:"state,omitempty"`

	// Exited only.
	Exit        *ExitInfo `json:"exit,omitempty"`
	Intentional bool      `json:"intentional,omitempty"`

	// Respawn only: the delay chosen by the respawn policy.
	Delay time.Duration `json:"delay_ns,omitempty"`

	// Shutdown only.
	Signal string `json:"signal,omitempty"`
}

// Observer receives pool events. OnPoolEvent is called from the supervisor
// loop and must not block.
type Observer interface {
	OnPoolEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnPoolEvent(e Event) { f(e) }
