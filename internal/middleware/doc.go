// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

// Package middleware provides the HTTP middleware shared by the worker and
// admin routers: request IDs and Prometheus request instrumentation.
//
// Both are chi-compatible (func(http.Handler) http.Handler):
//
//	r := chi.NewRouter()
//	r.Use(middleware.RequestID)
//	r.Use(middleware.PrometheusMetrics)
package middleware
