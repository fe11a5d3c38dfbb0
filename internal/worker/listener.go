// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

package worker

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
)

// Listen binds addr. With reusePort set, SO_REUSEPORT is enabled so every
// worker can bind the same port and the kernel balances between them.
func Listen(ctx context.Context, addr string, reusePort bool) (net.Listener, error) {
	lc := net.ListenConfig{}
	if reusePort {
		lc.Control = reusePortControl
	}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

// ListenerFile duplicates the socket of ln so it can be passed to a child
// through exec.Cmd.ExtraFiles. The caller closes the returned file.
func ListenerFile(ln net.Listener) (*os.File, error) {
	tl, ok := ln.(*net.TCPListener)
	if !ok {
		return nil, fmt.Errorf("listener %T cannot be shared", ln)
	}
	f, err := tl.File()
	if err != nil {
		return nil, fmt.Errorf("duplicate listener: %w", err)
	}
	return f, nil
}

// InheritedListener rebuilds the listener passed by the master on the fd
// named by EnvListenFD.
func InheritedListener() (net.Listener, error) {
	raw := os.Getenv(EnvListenFD)
	if raw == "" {
		return nil, fmt.Errorf("%s not set", EnvListenFD)
	}
	fd, err := strconv.Atoi(raw)
	if err != nil || fd < ListenerFD {
		return nil, fmt.Errorf("invalid %s %q", EnvListenFD, raw)
	}

	f := os.NewFile(uintptr(fd), "forkpool-listener")
	if f == nil {
		return nil, fmt.Errorf("listener fd %d is not open", fd)
	}
	defer f.Close()

	ln, err := net.FileListener(f)
	if err != nil {
		return nil, fmt.Errorf("inherit listener: %w", err)
	}
	return ln, nil
}
