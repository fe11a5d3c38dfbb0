// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitStarted(t *testing.T, m *MockService) {
	t.Helper()
	select {
	case <-m.Started():
	case <-time.After(2 * time.Second):
		t.Fatalf("%s was not started", m)
	}
}

func TestNewTree_Defaults(t *testing.T) {
	tests := []struct {
		name string
		in   TreeConfig
		want TreeConfig
	}{
		{"zero config", TreeConfig{}, DefaultTreeConfig()},
		{"explicit values kept", TreeConfig{
			FailureThreshold: 2,
			FailureDecay:     5,
			FailureBackoff:   time.Second,
			ShutdownTimeout:  3 * time.Second,
		}, TreeConfig{
			FailureThreshold: 2,
			FailureDecay:     5,
			FailureBackoff:   time.Second,
			ShutdownTimeout:  3 * time.Second,
		}},
		{"partial config", TreeConfig{ShutdownTimeout: time.Second}, TreeConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  time.Second,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := NewTree(quietLogger(), tt.in)
			if tree.config != tt.want {
				t.Errorf("config = %+v, want %+v", tree.config, tt.want)
			}
			if tree.Root() == nil {
				t.Error("Root() is nil")
			}
		})
	}
}

func TestNewTree_NilLogger(t *testing.T) {
	if tree := NewTree(nil, TreeConfig{}); tree.logger == nil {
		t.Error("nil logger not replaced with slog.Default")
	}
}

func TestTree_StartsBothLayers(t *testing.T) {
	tree := NewTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
	poolSvc := NewMockService("pool")
	adminSvc := NewMockService("admin")
	tree.AddPoolService(poolSvc)
	tree.AddAdminService(adminSvc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	waitStarted(t, poolSvc)
	waitStarted(t, adminSvc)
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop after cancel")
	}
}

func TestTree_PoolTerminationStopsTree(t *testing.T) {
	tree := NewTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})

	adminSvc := NewMockService("admin")
	tree.AddAdminService(adminSvc)

	drained := NewMockService("pool")
	drained.SetError(fmt.Errorf("worker pool stopped: %w", suture.ErrTerminateSupervisorTree))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	waitStarted(t, adminSvc)
	tree.AddPoolService(drained)

	select {
	case err := <-errCh:
		if !errors.Is(err, suture.ErrTerminateSupervisorTree) {
			t.Errorf("Serve() = %v, want ErrTerminateSupervisorTree", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("tree kept running after the pool terminated it")
	}

	if adminSvc.StopCount() != 1 {
		t.Errorf("admin service stopped %d times, want 1", adminSvc.StopCount())
	}
	if drained.StartCount() != 1 {
		t.Errorf("terminating service started %d times, want 1", drained.StartCount())
	}
}

func TestTree_AdminFailureIsRestartedInIsolation(t *testing.T) {
	tree := NewTree(quietLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	flaky := NewMockService("admin-http")
	flaky.SetFailCount(2)
	poolSvc := NewMockService("pool")
	tree.AddAdminService(flaky)
	tree.AddPoolService(poolSvc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for flaky.StartCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-errCh

	if flaky.StartCount() < 3 {
		t.Errorf("flaky admin service started %d times, want at least 3", flaky.StartCount())
	}
	if poolSvc.StartCount() != 1 {
		t.Errorf("pool service started %d times, want 1", poolSvc.StartCount())
	}
}

func TestTree_RemoveAdminService(t *testing.T) {
	tree := NewTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
	adminSvc := NewMockService("admin")
	token := tree.AddAdminService(adminSvc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)
	waitStarted(t, adminSvc)

	if err := tree.RemoveAdminService(token); err != nil {
		t.Fatalf("RemoveAdminService: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for adminSvc.StopCount() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if adminSvc.StopCount() != 1 {
		t.Errorf("removed service stopped %d times, want 1", adminSvc.StopCount())
	}

	cancel()
	<-errCh
	report, err := tree.UnstoppedServiceReport()
	if err != nil {
		t.Fatalf("UnstoppedServiceReport: %v", err)
	}
	if len(report) != 0 {
		t.Errorf("unstopped services: %v", report)
	}
}
