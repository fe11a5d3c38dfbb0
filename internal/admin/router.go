// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/forkpool/internal/middleware"
	"github.com/tomtom215/forkpool/internal/pool"
	"github.com/tomtom215/forkpool/internal/websocket"
)

// Pool is the part of *pool.Supervisor the admin API uses.
type Pool interface {
	Records() []pool.WorkerRecord
	Status() pool.Status
	Recycle(ctx context.Context, id int) error
}

// Options configures the admin router.
type Options struct {
	// RateLimit is requests per minute per client IP. Zero disables it.
	RateLimit int

	// Hub backs GET /api/v1/events. Nil disables the event stream.
	Hub *websocket.Hub

	// RecycleTimeout bounds how long DELETE /api/v1/workers/{id} waits for
	// the pool loop. Default 5s.
	RecycleTimeout time.Duration
}

// Handler serves the admin API.
type Handler struct {
	pool Pool
	opts Options
}

// NewHandler creates a Handler for p.
func NewHandler(p Pool, opts Options) *Handler {
	if opts.RecycleTimeout <= 0 {
		opts.RecycleTimeout = 5 * time.Second
	}
	return &Handler{pool: p, opts: opts}
}

// NewRouter returns the admin API router.
func NewRouter(p Pool, opts Options) http.Handler {
	h := NewHandler(p, opts)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(httprate.LimitByIP(opts.RateLimit, time.Minute))
		}
		r.Use(middleware.PrometheusMetrics)

		r.Get("/pool", h.PoolStatus)
		r.Get("/workers", h.Workers)
		r.Get("/workers/{id}", h.Worker)
		r.Delete("/workers/{id}", h.RecycleWorker)
		if opts.Hub != nil {
			r.Get("/events", websocket.ServeWS(opts.Hub, func() interface{} { return p.Records() }))
		}
	})

	return r
}
