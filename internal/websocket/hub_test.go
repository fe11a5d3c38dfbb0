// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

package websocket

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/forkpool/internal/logging"
	"github.com/tomtom215/forkpool/internal/metrics"
	"github.com/tomtom215/forkpool/internal/pool"
)

//nolint:gochecknoinits // quiet logs for all tests in the package
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

// runHub starts h until the test ends.
func runHub(t *testing.T, h *Hub) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.RunWithContext(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-errCh
	})
	return cancel
}

func testClient(h *Hub, buf int) *Client {
	return &Client{id: clientIDCounter.Add(1), hub: h, send: make(chan Message, buf)}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case m, ok := <-c.send:
		if !ok {
			t.Fatal("client send channel closed")
		}
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func TestHub_BroadcastsPoolEvents(t *testing.T) {
	h := NewHub()
	runHub(t, h)

	a, b := testClient(h, 8), testClient(h, 8)
	h.Register <- a
	h.Register <- b

	ev := pool.Event{Type: pool.EventExited, WorkerID: 2, Pid: 4242, State: "dead"}
	h.OnPoolEvent(ev)

	for _, c := range []*Client{a, b} {
		m := receive(t, c)
		if m.Type != MessageTypePoolEvent {
			t.Errorf("type = %q, want %q", m.Type, MessageTypePoolEvent)
		}
		got, ok := m.Data.(pool.Event)
		if !ok || got.Pid != 4242 || got.Type != pool.EventExited {
			t.Errorf("data = %#v, want the exited event", m.Data)
		}
	}
	if n := h.GetClientCount(); n != 2 {
		t.Errorf("GetClientCount() = %d, want 2", n)
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	h := NewHub()
	runHub(t, h)

	slow, fast := testClient(h, 1), testClient(h, 8)
	h.Register <- slow
	h.Register <- fast

	h.BroadcastJSON(MessageTypePoolEvent, "first")
	h.BroadcastJSON(MessageTypePoolEvent, "second")

	receive(t, fast)
	receive(t, fast)

	deadline := time.Now().Add(2 * time.Second)
	for h.GetClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := h.GetClientCount(); n != 1 {
		t.Fatalf("GetClientCount() = %d, want the slow client dropped", n)
	}
	<-slow.send
	if _, ok := <-slow.send; ok {
		t.Error("slow client's channel not closed")
	}
}

func TestHub_UnregisterAndShutdown(t *testing.T) {
	h := NewHub()
	cancel := runHub(t, h)

	gone, stays := testClient(h, 4), testClient(h, 4)
	h.Register <- gone
	h.Register <- stays
	h.Unregister <- gone

	if _, ok := <-gone.send; ok {
		t.Error("unregistered client's channel not closed")
	}
	if v := testutil.ToFloat64(metrics.EventSubscribers); v != 1 {
		t.Errorf("subscribers gauge = %v, want 1", v)
	}

	cancel()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	if _, ok := <-stays.send; ok {
		t.Error("client channel not closed on shutdown")
	}
	if n := h.GetClientCount(); n != 0 {
		t.Errorf("GetClientCount() = %d after shutdown", n)
	}
}

func TestGetShutdownReason(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	expired, cancel2 := context.WithTimeout(context.Background(), -time.Second)
	defer cancel2()

	tests := []struct {
		name string
		ctx  context.Context
		want ShutdownReason
	}{
		{"canceled", canceled, ShutdownReasonContextCanceled},
		{"deadline", expired, ShutdownReasonContextDeadline},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getShutdownReason(tt.ctx); got != tt.want {
				t.Errorf("getShutdownReason() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHub_RunReturnsContextError(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := h.RunWithContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("RunWithContext() = %v, want DeadlineExceeded", err)
	}
}

func TestMarshalMessage(t *testing.T) {
	data, err := MarshalMessage(Message{Type: MessageTypePoolEvent, Data: pool.Event{Type: pool.EventShutdown, Signal: "SIGTERM"}})
	if err != nil {
		t.Fatalf("MarshalMessage: %v", err)
	}
	want := `{"type":"pool_event","data":{"type":"shutdown","time":"0001-01-01T00:00:00Z","signal":"SIGTERM"}}`
	if string(data) != want {
		t.Errorf("MarshalMessage() = %s\nwant %s", data, want)
	}
}
