// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

//go:build !unix

package pool

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

func signalName(sig os.Signal) string {
	return sig.String()
}

func exitInfo(state *os.ProcessState, err error) ExitInfo {
	info := ExitInfo{Code: -1}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		info.Err = err.Error()
	}
	if state != nil {
		info.Code = state.ExitCode()
	}
	return info
}

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}
