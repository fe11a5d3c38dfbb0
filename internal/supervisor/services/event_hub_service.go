// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

package services

import (
	"context"
)

// ContextHub is satisfied by *websocket.Hub.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// EventHubService runs the admin websocket event hub under suture. The hub
// already follows the Serve contract, so the wrapper only names it.
type EventHubService struct {
	hub  ContextHub
	name string
}

// NewEventHubService wraps hub.
func NewEventHubService(hub ContextHub) *EventHubService {
	return &EventHubService{
		hub:  hub,
		name: "event-hub",
	}
}

// Serve implements suture.Service.
func (e *EventHubService) Serve(ctx context.Context) error {
	return e.hub.RunWithContext(ctx)
}

func (e *EventHubService) String() string {
	return e.name
}
