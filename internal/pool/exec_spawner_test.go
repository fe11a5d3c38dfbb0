// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

//go:build unix

package pool

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/tomtom215/forkpool/internal/worker"
)

const helperDelay = 500 * time.Millisecond

// helperSpawner re-executes the test binary as a worker sharing ln.
func helperSpawner(t *testing.T, ln net.Listener) *ExecSpawner {
	t.Helper()
	f, err := worker.ListenerFile(ln)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = f.Close() })

	return &ExecSpawner{
		Path: os.Args[0],
		Args: []string{"-test.run=^$"},
		Env: append(os.Environ(),
			"FORKPOOL_DELAY="+helperDelay.String(),
			"FORKPOOL_LISTEN_MODE=inherit",
			"LOG_LEVEL=error",
		),
		Listener: f,
		Stdout:   os.Stderr,
		Stderr:   os.Stderr,
	}
}

func get(t *testing.T, url string) (string, error) {
	t.Helper()
	client := &http.Client{
		Timeout:   10 * time.Second,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
	resp, err := client.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return string(b), err
}

func livePids(sup *Supervisor) map[int]bool {
	pids := map[int]bool{}
	for _, r := range sup.Records() {
		if r.State == StateListening {
			pids[r.Pid] = true
		}
	}
	return pids
}

func pidFromBody(t *testing.T, body, prefix string) int {
	t.Helper()
	if !strings.HasPrefix(body, prefix) {
		t.Fatalf("body = %q, want prefix %q", body, prefix)
	}
	pid, err := strconv.Atoi(strings.TrimPrefix(body, prefix))
	if err != nil {
		t.Fatalf("body %q carries no pid: %v", body, err)
	}
	return pid
}

func TestExecSpawner_PoolLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("forks worker processes")
	}

	ln, err := worker.Listen(context.Background(), "127.0.0.1:0", false)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	base := "http://" + ln.Addr().String()

	opts := testOptions(2)
	opts.ReadyTimeout = 20 * time.Second
	sup := New(opts, helperSpawner(t, ln))
	srv := startServing(t, sup)

	recs := sup.Records()
	if countRecords(recs, StateListening) != 2 {
		t.Fatalf("records after Start = %+v, want 2 listening", recs)
	}

	t.Run("hello reports a live worker pid", func(t *testing.T) {
		start := time.Now()
		body, err := get(t, base+"/")
		if err != nil {
			t.Fatal(err)
		}
		elapsed := time.Since(start)
		pid := pidFromBody(t, body, "Hello World from Worker ")
		if !livePids(sup)[pid] {
			t.Errorf("pid %d is not a live worker (%v)", pid, livePids(sup))
		}
		if elapsed < helperDelay || elapsed > helperDelay+2*time.Second {
			t.Errorf("response after %v, want about %v", elapsed, helperDelay)
		}
	})

	t.Run("concurrent busy requests overlap", func(t *testing.T) {
		start := time.Now()
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				body, err := get(t, base+"/busy")
				if err != nil {
					t.Error(err)
					return
				}
				if !strings.HasPrefix(body, "Busy response from Worker ") {
					t.Errorf("body = %q", body)
				}
			}()
		}
		wg.Wait()
		if elapsed := time.Since(start); elapsed >= 2*helperDelay {
			t.Errorf("two concurrent requests took %v, want under %v", elapsed, 2*helperDelay)
		}
	})

	t.Run("killed worker is replaced once", func(t *testing.T) {
		victim := sup.Records()[0]
		if err := syscall.Kill(victim.Pid, syscall.SIGKILL); err != nil {
			t.Fatal(err)
		}

		waitFor(t, "replacement listening", func() bool {
			recs := sup.Records()
			return countRecords(recs, StateDead) == 1 && countRecords(recs, StateListening) == 2
		})

		recs := sup.Records()
		if len(recs) != 3 {
			t.Fatalf("records = %+v, want exactly one replacement", recs)
		}
		for _, r := range recs {
			if r.ID == victim.ID && (r.Exit == nil || r.Exit.Signal != "SIGKILL") {
				t.Errorf("victim exit = %+v, want SIGKILL", r.Exit)
			}
		}

		if _, err := get(t, base+"/healthz"); err != nil {
			t.Errorf("pool not serving after replacement: %v", err)
		}
	})

	t.Run("shutdown forwards SIGTERM without respawn", func(t *testing.T) {
		sup.Shutdown(syscall.SIGTERM)
		if err := srv.wait(); err != nil {
			t.Fatalf("Serve: %v", err)
		}

		recs := sup.Records()
		if len(recs) != 3 || countRecords(recs, StateDead) != 3 {
			t.Fatalf("records after shutdown = %+v, want 3 dead and no new forks", recs)
		}
		for _, r := range recs[1:] {
			if r.Exit == nil || r.Exit.Code != 0 {
				t.Errorf("worker %d exit = %+v, want clean exit 0", r.ID, r.Exit)
			}
		}
	})
}

func TestExecSpawner_ShutdownDuringStartupExitsCleanly(t *testing.T) {
	if testing.Short() {
		t.Skip("forks worker processes")
	}

	ln, err := worker.Listen(context.Background(), "127.0.0.1:0", false)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	opts := testOptions(4)
	opts.ReadyTimeout = 20 * time.Second
	sup := New(opts, helperSpawner(t, ln))

	// The signal is queued before any worker is forked, so the loop
	// handles it while every worker is still starting.
	sup.Shutdown(syscall.SIGTERM)
	err = sup.Start(context.Background())
	if !errors.Is(err, ErrStartupFailed) || !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("Start = %v, want ErrStartupFailed and ErrShuttingDown", err)
	}

	recs := sup.Records()
	if len(recs) != 4 {
		t.Fatalf("records = %+v, want 4", recs)
	}
	for _, r := range recs {
		if r.State != StateDead || r.Exit == nil {
			t.Errorf("worker %d = %+v, want dead", r.ID, r)
			continue
		}
		if r.Exit.Code != 0 || r.Exit.Signal != "" {
			t.Errorf("worker %d exit = %+v, want code 0 and no signal", r.ID, r.Exit)
		}
	}
}

func TestExecSpawner_WorkerEnv(t *testing.T) {
	t.Parallel()
	s := &ExecSpawner{
		Env:      []string{"PATH=/bin", worker.EnvWorkerID + "=9", worker.EnvListenFD + "=7"},
		Listener: os.Stdin,
	}
	env := s.workerEnv(4)

	want := []string{"PATH=/bin", worker.EnvWorkerID + "=4", worker.EnvListenFD + "=5"}
	if strings.Join(env, " ") != strings.Join(want, " ") {
		t.Fatalf("env = %v, want %v", env, want)
	}

	s.Listener = nil
	for _, kv := range s.workerEnv(4) {
		if strings.HasPrefix(kv, worker.EnvListenFD+"=") {
			t.Errorf("reuseport spawner leaked %q", kv)
		}
	}
}

func TestExitInfo(t *testing.T) {
	t.Parallel()

	cmd := helperCommand(t, "exit 3")
	err := cmd.Run()
	info := exitInfo(cmd.ProcessState, err)
	if info.Code != 3 || info.Signal != "" || info.Err != "" {
		t.Errorf("exit 3: %+v", info)
	}

	cmd = helperCommand(t, "kill -TERM $$")
	err = cmd.Run()
	info = exitInfo(cmd.ProcessState, err)
	if info.Code != -1 || info.Signal != "SIGTERM" {
		t.Errorf("killed by SIGTERM: %+v", info)
	}
	if got := info.String(); got != "code -1 and signal SIGTERM" {
		t.Errorf("String() = %q", got)
	}
}

func helperCommand(t *testing.T, script string) *exec.Cmd {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return exec.Command(sh, "-c", script)
}
