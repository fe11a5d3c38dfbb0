// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

package worker

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/forkpool/internal/logging"
	"github.com/tomtom215/forkpool/internal/middleware"
)

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Pid           int     `json:"pid"`
	WorkerID      int     `json:"worker_id"`
	State         string  `json:"state"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func (w *Worker) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/", w.handleHello)
	r.Get("/busy", w.handleBusy)
	r.Get("/healthz", w.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (w *Worker) handleHello(rw http.ResponseWriter, r *http.Request) {
	if err := w.wait(r.Context()); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Str("path", r.URL.Path).Msg("Client went away during delay")
		return
	}
	writeText(rw, "Hello World from Worker "+strconv.Itoa(w.opts.Pid))
}

func (w *Worker) handleBusy(rw http.ResponseWriter, r *http.Request) {
	logging.Ctx(r.Context()).Info().Int("worker_id", w.opts.ID).Msgf("Worker %d is busy...", w.opts.Pid)
	if err := w.wait(r.Context()); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Str("path", r.URL.Path).Msg("Client went away during delay")
		return
	}
	writeText(rw, "Busy response from Worker "+strconv.Itoa(w.opts.Pid))
}

func (w *Worker) handleHealth(rw http.ResponseWriter, _ *http.Request) {
	state := w.State()
	body := HealthResponse{
		Pid:           w.opts.Pid,
		WorkerID:      w.opts.ID,
		State:         state.String(),
		UptimeSeconds: time.Since(w.started).Seconds(),
	}

	status := http.StatusOK
	if state != StateListening {
		status = http.StatusServiceUnavailable
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(body); err != nil {
		w.log.Error().Err(err).Msg("Failed to encode health response")
	}
}

func writeText(rw http.ResponseWriter, body string) {
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = rw.Write([]byte(body))
}
