// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fork reasons used as the "reason" label on PoolForks.
const (
	ForkInitial = "initial"
	ForkRespawn = "respawn"
)

var (
	// Pool (master) metrics

	PoolForks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forkpool_worker_forks_total",
			Help: "Total number of worker processes forked",
		},
		[]string{"reason"}, // "initial", "respawn"
	)

	PoolForkFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forkpool_worker_fork_failures_total",
			Help: "Total number of failed worker forks",
		},
	)

	PoolExits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forkpool_worker_exits_total",
			Help: "Total number of observed worker exits",
		},
		[]string{"intentional", "signal"},
	)

	PoolWorkers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "forkpool_workers",
			Help: "Current number of worker records by state",
		},
		[]string{"state"},
	)

	PoolShutdownSignals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forkpool_shutdown_signals_total",
			Help: "Shutdown signals received by the master and forwarded to the pool",
		},
		[]string{"signal"},
	)

	PoolRespawnDelay = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "forkpool_respawn_delay_seconds",
			Help:    "Delay imposed by the respawn policy before forking a replacement",
			Buckets: []float64{0, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	PoolRecycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forkpool_worker_recycles_total",
			Help: "Workers killed on operator request",
		},
	)

	PoolStartupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "forkpool_startup_duration_seconds",
			Help:    "Time from first fork until every worker was listening",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "forkpool_event_subscribers",
			Help: "Connected admin websocket event subscribers",
		},
	)

	// Worker metrics

	WorkerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forkpool_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"method", "route", "status_code"},
	)

	WorkerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forkpool_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 7.5, 10, 30}, // the default workload sleeps 5s
		},
		[]string{"method", "route"},
	)

	WorkerRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "forkpool_http_requests_in_flight",
			Help: "Current number of in-flight HTTP requests",
		},
	)
)

// RecordFork records a fork attempt. err is non-nil for failed forks.
func RecordFork(reason string, err error) {
	if err != nil {
		PoolForkFailures.Inc()
		return
	}
	PoolForks.WithLabelValues(reason).Inc()
}

// RecordExit records an observed worker exit. signal is empty for normal exits.
func RecordExit(intentional bool, signal string) {
	if signal == "" {
		signal = "none"
	}
	PoolExits.WithLabelValues(strconv.FormatBool(intentional), signal).Inc()
}

// SetWorkerStates replaces the per-state gauge values. States missing from
// counts are reset to zero.
func SetWorkerStates(states []string, counts map[string]int) {
	for _, s := range states {
		PoolWorkers.WithLabelValues(s).Set(float64(counts[s]))
	}
}

// RecordShutdownSignal records a forwarded shutdown signal.
func RecordShutdownSignal(signal string) {
	PoolShutdownSignals.WithLabelValues(signal).Inc()
}

// RecordRespawnDelay records the delay chosen by the respawn policy.
func RecordRespawnDelay(d time.Duration) {
	PoolRespawnDelay.Observe(d.Seconds())
}

// RecordStartup records how long the initial pool took to become ready.
func RecordStartup(d time.Duration) {
	PoolStartupDuration.Observe(d.Seconds())
}

// RecordRequest records a completed worker HTTP request.
func RecordRequest(method, route, statusCode string, duration time.Duration) {
	WorkerRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	WorkerRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackInFlight increments or decrements the in-flight request gauge.
func TrackInFlight(inc bool) {
	if inc {
		WorkerRequestsInFlight.Inc()
	} else {
		WorkerRequestsInFlight.Dec()
	}
}
