// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

package services

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/thejerf/suture/v4"
)

// PoolRunner is satisfied by *pool.Supervisor.
type PoolRunner interface {
	Start(ctx context.Context) error
	Serve(ctx context.Context) error
}

// PoolService runs the worker pool under suture. The first Serve call
// starts the pool; a restart after a panic resumes the supervision loop
// without forking again.
//
// Serve always ends the whole tree: a drained pool, a failed start and a
// loop error all return errors wrapping suture.ErrTerminateSupervisorTree,
// so the master process exits along with its workers.
type PoolService struct {
	pool    PoolRunner
	started atomic.Bool
	name    string
}

// NewPoolService wraps p.
func NewPoolService(p PoolRunner) *PoolService {
	return &PoolService{
		pool: p,
		name: "worker-pool",
	}
}

// Serve implements suture.Service.
func (p *PoolService) Serve(ctx context.Context) error {
	if p.started.CompareAndSwap(false, true) {
		if err := p.pool.Start(ctx); err != nil {
			return fmt.Errorf("%w: %w", suture.ErrTerminateSupervisorTree, err)
		}
	}
	if err := p.pool.Serve(ctx); err != nil {
		return fmt.Errorf("%w: %w", suture.ErrTerminateSupervisorTree, err)
	}
	return fmt.Errorf("worker pool stopped: %w", suture.ErrTerminateSupervisorTree)
}

func (p *PoolService) String() string {
	return p.name
}
