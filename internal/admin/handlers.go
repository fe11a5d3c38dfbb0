// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/forkpool/internal/logging"
	"github.com/tomtom215/forkpool/internal/pool"
	"github.com/tomtom215/forkpool/internal/validation"
)

// workersQuery filters GET /api/v1/workers.
type workersQuery struct {
	State string `query:"state" validate:"omitempty,oneof=starting listening terminating dead"`
	Live  string `query:"live" validate:"omitempty,oneof=true false"`
}

// Health reports whether the pool is accepting work.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	st := h.pool.Status()
	status := http.StatusOK
	if st.ShuttingDown {
		status = http.StatusServiceUnavailable
	}
	respondData(w, r, status, map[string]any{
		"live":          st.Live,
		"size":          st.Size,
		"shutting_down": st.ShuttingDown,
	})
}

// PoolStatus returns pool.Status.
func (h *Handler) PoolStatus(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, h.pool.Status())
}

// Workers lists worker records, optionally filtered by ?state= and ?live=.
func (h *Handler) Workers(w http.ResponseWriter, r *http.Request) {
	q := workersQuery{
		State: r.URL.Query().Get("state"),
		Live:  r.URL.Query().Get("live"),
	}
	if err := validation.ValidateStruct(&q); err != nil {
		respondError(w, r, http.StatusBadRequest, validation.Code, err.Error())
		return
	}

	recs := h.pool.Records()
	out := make([]pool.WorkerRecord, 0, len(recs))
	for _, rec := range recs {
		if q.State != "" && rec.State.String() != q.State {
			continue
		}
		if q.Live != "" && rec.State.Live() != (q.Live == "true") {
			continue
		}
		out = append(out, rec)
	}

	n := len(out)
	meta := newMeta(r)
	meta.Count = &n
	respondJSON(w, http.StatusOK, &Response{Success: true, Data: out, Meta: meta})
}

// Worker returns the newest record for one worker id.
func (h *Handler) Worker(w http.ResponseWriter, r *http.Request) {
	id, ok := h.workerID(w, r)
	if !ok {
		return
	}
	recs := h.pool.Records()
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].ID == id {
			respondData(w, r, http.StatusOK, recs[i])
			return
		}
	}
	respondError(w, r, http.StatusNotFound, CodeNotFound, fmt.Sprintf("no worker with id %d", id))
}

// RecycleWorker SIGKILLs a live worker; the pool replaces it as it would
// any crashed worker.
func (h *Handler) RecycleWorker(w http.ResponseWriter, r *http.Request) {
	id, ok := h.workerID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.RecycleTimeout)
	defer cancel()

	err := h.pool.Recycle(ctx, id)
	switch {
	case err == nil:
		logging.Ctx(r.Context()).Info().Int("worker_id", id).Msg("Worker recycled on operator request")
		respondData(w, r, http.StatusAccepted, map[string]any{"worker_id": id, "status": "recycling"})
	case errors.Is(err, pool.ErrUnknownWorker):
		respondError(w, r, http.StatusNotFound, CodeNotFound, fmt.Sprintf("no live worker with id %d", id))
	case errors.Is(err, pool.ErrShuttingDown):
		respondError(w, r, http.StatusConflict, CodeShuttingDown, "pool is shutting down")
	case errors.Is(err, pool.ErrNotStarted):
		respondError(w, r, http.StatusConflict, CodeStarting, "pool is still starting")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, r, http.StatusGatewayTimeout, CodeInternal, "pool did not answer in time")
	default:
		respondError(w, r, http.StatusInternalServerError, CodeInternal, err.Error())
	}
}

func (h *Handler) workerID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		respondError(w, r, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("invalid worker id %q", raw))
		return 0, false
	}
	return id, true
}
