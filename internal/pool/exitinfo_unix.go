// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

//go:build unix

package pool

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// signalName returns the conventional name (SIGTERM) of sig.
func signalName(sig os.Signal) string {
	if s, ok := sig.(syscall.Signal); ok {
		if name := unix.SignalName(s); name != "" {
			return name
		}
	}
	return sig.String()
}

// exitInfo converts the result of exec.Cmd.Wait.
func exitInfo(state *os.ProcessState, err error) ExitInfo {
	info := ExitInfo{Code: -1}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		info.Err = err.Error()
	}
	if state == nil {
		return info
	}

	info.Code = state.ExitCode()
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		info.Signal = signalName(ws.Signal())
	}
	return info
}

func sysProcAttr() *syscall.SysProcAttr {
	// Own process group: a terminal Ctrl-C reaches only the master, which
	// forwards it exactly once.
	return &syscall.SysProcAttr{Setpgid: true}
}
