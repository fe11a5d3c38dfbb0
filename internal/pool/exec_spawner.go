// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

package pool

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/tomtom215/forkpool/internal/worker"
)

// ExecSpawner forks workers by re-executing a binary in the worker role.
// The handoff pipes and, in inherit mode, the listening socket are passed
// through exec.Cmd.ExtraFiles.
type ExecSpawner struct {
	// Path and Args are the binary and its arguments (without argv[0]).
	Path string
	Args []string

	// Env is the base environment; worker role variables are appended.
	Env []string

	// Listener is the shared socket passed on worker.ListenerFD. Nil in
	// reuseport mode.
	Listener *os.File

	Stdout io.Writer
	Stderr io.Writer
}

// NewExecSpawner re-executes the running binary with the master's
// arguments and environment, so workers resolve the same configuration.
func NewExecSpawner(listener *os.File) (*ExecSpawner, error) {
	path, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	return &ExecSpawner{
		Path:     path,
		Args:     os.Args[1:],
		Env:      os.Environ(),
		Listener: listener,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}, nil
}

// Spawn starts worker id and returns once the process exists.
func (s *ExecSpawner) Spawn(id int) (Process, error) {
	readyR, readyW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("ready pipe: %w", err)
	}
	gateR, gateW, err := os.Pipe()
	if err != nil {
		_ = readyR.Close()
		_ = readyW.Close()
		return nil, fmt.Errorf("gate pipe: %w", err)
	}

	cmd := exec.Command(s.Path, s.Args...) //nolint:gosec // re-executes our own binary
	cmd.Env = s.workerEnv(id)
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	cmd.SysProcAttr = sysProcAttr()
	cmd.ExtraFiles = []*os.File{readyW, gateR}
	if s.Listener != nil {
		cmd.ExtraFiles = append(cmd.ExtraFiles, s.Listener)
	}

	err = cmd.Start()
	// The child holds its own copies now.
	_ = readyW.Close()
	_ = gateR.Close()
	if err != nil {
		_ = readyR.Close()
		_ = gateW.Close()
		return nil, fmt.Errorf("start worker %d: %w", id, err)
	}

	p := &execProcess{
		cmd:   cmd,
		gate:  gateW,
		ready: make(chan error, 1),
	}
	go p.readReady(readyR)
	return p, nil
}

func (s *ExecSpawner) workerEnv(id int) []string {
	env := make([]string, 0, len(s.Env)+2)
	for _, kv := range s.Env {
		if strings.HasPrefix(kv, worker.EnvWorkerID+"=") || strings.HasPrefix(kv, worker.EnvListenFD+"=") {
			continue
		}
		env = append(env, kv)
	}
	env = append(env, worker.EnvWorkerID+"="+strconv.Itoa(id))
	if s.Listener != nil {
		env = append(env, worker.EnvListenFD+"="+strconv.Itoa(worker.ListenerFD))
	}
	return env
}

type execProcess struct {
	cmd   *exec.Cmd
	ready chan error

	gateMu sync.Mutex
	gate   *os.File
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Ready() <-chan error {
	return p.ready
}

func (p *execProcess) readReady(r *os.File) {
	defer r.Close()
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		p.ready <- fmt.Errorf("worker closed ready pipe: %w", err)
		return
	}
	pid, err := worker.ParseReady(line)
	if err != nil {
		p.ready <- err
		return
	}
	if pid != p.Pid() {
		p.ready <- fmt.Errorf("ready message from pid %d, expected %d", pid, p.Pid())
		return
	}
	p.ready <- nil
}

// Release writes the gate message. The write end stays open; the worker
// treats EOF as loss of the master.
func (p *execProcess) Release() error {
	p.gateMu.Lock()
	defer p.gateMu.Unlock()
	if p.gate == nil {
		return errors.New("worker already exited")
	}
	if _, err := io.WriteString(p.gate, worker.GateMessage); err != nil {
		return fmt.Errorf("write gate: %w", err)
	}
	return nil
}

func (p *execProcess) Signal(sig os.Signal) error {
	err := p.cmd.Process.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (p *execProcess) Kill() error {
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (p *execProcess) Wait() ExitInfo {
	err := p.cmd.Wait()

	p.gateMu.Lock()
	if p.gate != nil {
		_ = p.gate.Close()
		p.gate = nil
	}
	p.gateMu.Unlock()

	return exitInfo(p.cmd.ProcessState, err)
}
